/*
   livehub is a websocket broadcast hub for live shopping
   Copyright (C) 2019 Timothy Drysdale <timothy.d.drysdale@gmail.com>

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as
   published by the Free Software Foundation, either version 3 of the
   License, or (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/practable/livehub/internal/message"
	"github.com/practable/livehub/internal/reconws"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listenCmd = &cobra.Command{
	Use:   "listen <ws-url>",
	Short: "print every message published in a room",
	Long: `Listen connects to a room, reconnecting if the connection drops, and
prints each message on its own line. Missed messages are not recovered.

export LIVEHUB_LISTEN_TOKEN=$(livehub token)   # optional
export LIVEHUB_LISTEN_SID=<session id>         # optional
export LIVEHUB_LISTEN_TYPES=order,viewer_total # optional, print only these message types
livehub listen ws://localhost:3030/ws/_events
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		viper.SetEnvPrefix("LIVEHUB_LISTEN")
		viper.AutomaticEnv()

		viper.SetDefault("log_level", "warn")

		if _, err := setupLogging(viper.GetString("log_level"), "text", "stdout"); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		r := reconws.New()

		if token := viper.GetString("token"); token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}

		if sid := viper.GetString("sid"); sid != "" {
			r.Header.Set("Cookie", "sid="+sid)
		}

		types := strings.Split(viper.GetString("types"), ",")

		ctx, cancel := context.WithCancel(context.Background())

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)

		go func() {
			<-c
			cancel()
		}()

		go r.Reconnect(ctx, args[0])

		log.WithField("url", args[0]).Info("Listening")

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-r.In:
				if wanted(msg.Data, types) {
					fmt.Println(string(msg.Data))
				}
			}
		}
	},
}

// wanted reports whether a message should be printed. Every message is wanted
// when types lists nothing; otherwise only messages whose "t" is listed.
func wanted(data []byte, types []string) bool {

	filtered := false

	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		filtered = true
		if t == message.Type(data) {
			return true
		}
	}

	return !filtered
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
