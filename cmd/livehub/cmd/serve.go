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
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/practable/livehub/internal/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the livehub server",
	Long: `Serve runs the websocket hub and the http api. Set parameters with
environment variables, for example:

export LIVEHUB_AUDIENCE=livehub
export LIVEHUB_COOKIE_NAME=sid
export LIVEHUB_DB=/var/lib/livehub/livehub.db
export LIVEHUB_EVENTS_BUFFER=256
export LIVEHUB_LISTEN=127.0.0.1:3030
export LIVEHUB_LOG_FILE=/var/log/livehub/livehub.log
export LIVEHUB_LOG_FORMAT=json
export LIVEHUB_LOG_LEVEL=warn
export LIVEHUB_ROOM_BUFFER=512
export LIVEHUB_SECRET=somesecret
export LIVEHUB_STATIC_DIR=webapp
export LIVEHUB_TIDY_EVERY=5m
livehub serve

Notes:
Without LIVEHUB_SECRET, bearer tokens are refused and only session cookies work.
Send SIGHUP to reopen the log file after rotation.
LIVEHUB_TIDY_EVERY, LIVEHUB_ROOM_BUFFER and LIVEHUB_EVENTS_BUFFER are optional
tuning parameters that can safely be left at their default values.
`,
	Run: func(cmd *cobra.Command, args []string) {

		viper.SetEnvPrefix("LIVEHUB")
		viper.AutomaticEnv()

		viper.SetDefault("audience", "livehub")
		viper.SetDefault("cookie_name", "sid")
		viper.SetDefault("db", "livehub.db")
		viper.SetDefault("events_buffer", 256)
		viper.SetDefault("listen", "127.0.0.1:3030")
		viper.SetDefault("log_file", "stdout")
		viper.SetDefault("log_format", "json")
		viper.SetDefault("log_level", "warn")
		viper.SetDefault("room_buffer", 512)
		viper.SetDefault("secret", "")
		viper.SetDefault("static_dir", "webapp")
		viper.SetDefault("tidy_every", "5m")

		audience := viper.GetString("audience")
		cookieName := viper.GetString("cookie_name")
		db := viper.GetString("db")
		eventsBuffer := viper.GetInt("events_buffer")
		listen := viper.GetString("listen")
		logFile := viper.GetString("log_file")
		logFormat := viper.GetString("log_format")
		logLevel := viper.GetString("log_level")
		roomBuffer := viper.GetInt("room_buffer")
		secret := viper.GetString("secret")
		staticDir := viper.GetString("static_dir")
		tidyEveryStr := viper.GetString("tidy_every")

		// Sanity checks
		ok := true

		if roomBuffer < 1 {
			fmt.Println("LIVEHUB_ROOM_BUFFER must be at least 1")
			ok = false
		}

		if eventsBuffer < 1 {
			fmt.Println("LIVEHUB_EVENTS_BUFFER must be at least 1")
			ok = false
		}

		tidyEvery, err := time.ParseDuration(tidyEveryStr)
		if err != nil {
			fmt.Println("cannot parse duration in LIVEHUB_TIDY_EVERY=" + tidyEveryStr)
			ok = false
		}

		if !ok {
			os.Exit(1)
		}

		logWriter, err := setupLogging(logLevel, logFormat, logFile)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Report useful info
		log.Infof("livehub version: %s", versionString())
		log.Infof("Audience: [%s]", audience)
		log.Infof("Bearer tokens enabled: [%t]", secret != "")
		log.Infof("Cookie name: [%s]", cookieName)
		log.Infof("Database: [%s]", db)
		log.Infof("Events buffer: [%d]", eventsBuffer)
		log.Infof("Listen: [%s]", listen)
		log.Infof("Log file: [%s]", logFile)
		log.Infof("Log format: [%s]", logFormat)
		log.Infof("Log level: [%s]", logLevel)
		log.Infof("Room buffer: [%d]", roomBuffer)
		log.Infof("Static dir: [%s]", staticDir)
		log.Infof("Tidy every: [%s]", tidyEvery)

		var wg sync.WaitGroup

		closed := make(chan struct{})

		c := make(chan os.Signal, 1)

		signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

		go func() {
			for sig := range c {
				if sig == syscall.SIGHUP {
					if logWriter != nil {
						if err := logWriter.Reopen(); err != nil {
							fmt.Println("failed to reopen log file: " + err.Error())
						}
					}
					continue
				}
				close(closed)
				wg.Wait()
				os.Exit(0)
			}
		}()

		config := server.Config{
			Listen:       listen,
			DB:           db,
			Secret:       secret,
			Audience:     audience,
			CookieName:   cookieName,
			RoomBuffer:   roomBuffer,
			EventsBuffer: eventsBuffer,
			TidyEvery:    tidyEvery,
			StaticDir:    staticDir,
		}

		wg.Add(1)

		if err := server.Run(closed, &wg, config); err != nil {
			log.WithField("error", err).Error("livehub stopped")
			fmt.Println(err)
			os.Exit(1)
		}

		wg.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
