/*
 * Copyright (c) CERN 2016
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package util

import (
	log "github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
	"os"
)

// Hostname returns the machine name
func Hostname() string {
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "Unknown"
}

// OnExit runs handler before the process exits through Exit or Fatal
func OnExit(handler func()) {
	atexit.Register(handler)
}

// Exit runs the exit handlers, and exits with code
func Exit(code int) {
	atexit.Exit(code)
}

// Fatal logs the error, runs the exit handlers, and exits with 1
func Fatal(args ...interface{}) {
	log.Error(args...)
	atexit.Exit(1)
}
