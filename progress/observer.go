/*
Copyright 2020 Huawei Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package progress provides a structured-logging sink for an in-flight
// transfer. It is a pure side channel: nothing here affects transfer
// outcome.
package progress

import (
	"github.com/sirupsen/logrus"
)

// LogrusObserver implements ymodem.Observer over a logrus.FieldLogger.
// Construct with NewLogrusObserver; the zero value has a nil logger and
// will panic on use.
type LogrusObserver struct {
	log logrus.FieldLogger
}

// NewLogrusObserver returns an observer that logs through log.
func NewLogrusObserver(log logrus.FieldLogger) *LogrusObserver {
	return &LogrusObserver{log: log}
}

// OnInfo logs the start of a batch at info level.
func (o *LogrusObserver) OnInfo(name string, length int64) {
	o.log.WithFields(logrus.Fields{
		"name":   name,
		"length": length,
	}).Info("starting firmware transfer")
}

// OnPacket logs one data-packet outcome at debug level.
func (o *LogrusObserver) OnPacket(seq uint8, size int, totalPackets, successCount, errorCount int) {
	o.log.WithFields(logrus.Fields{
		"seq":     seq,
		"bytes":   size,
		"total":   totalPackets,
		"success": successCount,
		"errors":  errorCount,
	}).Debug("sent packet")
}

// OnDone logs the terminal outcome of the batch at info level.
func (o *LogrusObserver) OnDone(success bool) {
	o.log.WithField("success", success).Info("firmware transfer finished")
}
