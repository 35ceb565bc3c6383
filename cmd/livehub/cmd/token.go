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
	"time"

	"github.com/practable/livehub/internal/session"
	"github.com/practable/livehub/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "livehub token generates a bearer token for the livehub api",
	Long: `Set the operating parameters with environment variables, for example

export LIVEHUB_TOKEN_AUDIENCE=livehub
export LIVEHUB_TOKEN_LIFETIME=3600
export LIVEHUB_TOKEN_NAME=Tim
export LIVEHUB_TOKEN_ROLE=admin
export LIVEHUB_TOKEN_SECRET=somesecret
export LIVEHUB_TOKEN_UID=1
bearer=$(livehub token)
curl -H "Authorization: Bearer $bearer" http://localhost:3030/api/admin/orders
`,

	Run: func(cmd *cobra.Command, args []string) {

		viper.SetEnvPrefix("LIVEHUB_TOKEN")
		viper.AutomaticEnv()

		viper.SetDefault("audience", "livehub")
		viper.SetDefault("role", store.RoleAdmin)

		audience := viper.GetString("audience")
		lifetime := viper.GetInt64("lifetime")
		name := viper.GetString("name")
		role := viper.GetString("role")
		secret := viper.GetString("secret")
		uid := viper.GetInt64("uid")

		// check inputs

		if lifetime == 0 {
			fmt.Println("LIVEHUB_TOKEN_LIFETIME not set")
			os.Exit(1)
		}
		if secret == "" {
			fmt.Println("LIVEHUB_TOKEN_SECRET not set")
			os.Exit(1)
		}
		if uid == 0 {
			fmt.Println("LIVEHUB_TOKEN_UID not set")
			os.Exit(1)
		}
		if role != store.RoleAdmin && role != store.RoleViewer {
			fmt.Println("LIVEHUB_TOKEN_ROLE must be admin or viewer")
			os.Exit(1)
		}

		iat := time.Now().Add(-time.Second) //ensure immediately usable
		exp := iat.Add(time.Duration(lifetime) * time.Second)

		bearer, err := session.NewToken(session.NewClaims(audience, uid, role, name, iat, iat, exp), secret)

		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		fmt.Println(bearer)
		os.Exit(0)

	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
