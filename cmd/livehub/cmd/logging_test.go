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
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {

	defer log.SetLevel(log.InfoLevel)
	defer log.SetOutput(os.Stdout)

	f, err := setupLogging("debug", "text", "stdout")
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	_, err = setupLogging("loud", "json", "stdout")
	assert.Error(t, err)

	_, err = setupLogging("warn", "xml", "stdout")
	assert.Error(t, err)

	path := t.TempDir() + "/livehub.log"
	f, err = setupLogging("info", "json", path)
	require.NoError(t, err)
	require.NotNil(t, f)
	defer f.Close()

	log.Info("rotated")
	assert.NoError(t, f.Reopen())
	assert.FileExists(t, path)
}
