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
	"strings"

	"github.com/client9/reopen"
	log "github.com/sirupsen/logrus"
)

// setupLogging sets the logrus level, format and output. A file output is
// returned so that it can be reopened after log rotation; it is nil for
// stdout.
func setupLogging(level, format, file string) (*reopen.FileWriter, error) {

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("LIVEHUB_LOG_LEVEL can be trace, debug, info, warn, error, fatal or panic but not %s", level)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{})
	default:
		return nil, fmt.Errorf("LIVEHUB_LOG_FORMAT can be json or text but not %s", format)
	}

	if strings.ToLower(file) == "stdout" || file == "" {
		log.SetOutput(os.Stdout)
		return nil, nil
	}

	f, err := reopen.NewFileWriter(file)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Infof("Failed to log to %s, logging to default stderr", file)
		return nil, nil
	}

	log.SetOutput(f)

	return f, nil
}
