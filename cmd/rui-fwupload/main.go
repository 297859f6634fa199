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

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rakwireless/rui-fwupload/dfu"
	"github.com/rakwireless/rui-fwupload/progress"
	"github.com/rakwireless/rui-fwupload/serialport"
	"github.com/rakwireless/rui-fwupload/ymodem"
)

func newRootCmd() *cobra.Command {
	var (
		portName string
		filePath string
		toolName string
	)

	cmd := &cobra.Command{
		Use:   "rui-fwupload",
		Short: "Upload firmware to a RAK RUI device over a serial port",
		RunE: func(cmd *cobra.Command, args []string) error {
			if portName == "" {
				return fmt.Errorf("select a serial port with -p")
			}
			if filePath == "" {
				return fmt.Errorf("select a firmware file with -f")
			}
			_ = toolName // accepted for command-line compatibility, unused by the core path
			return run(portName, filePath)
		},
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.Flags().StringVarP(&portName, "port", "p", "", "serial device path")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "firmware image to upload")
	cmd.Flags().StringVarP(&toolName, "tool", "t", "", "fallback tool name (unused)")

	return cmd
}

func run(portName, filePath string) error {
	log := logrus.StandardLogger()

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	opener := func(baud int) (dfu.Port, error) {
		return serialport.Open(portName, baud)
	}

	coordinator := dfu.NewCoordinator(opener).WithLogger(log)
	if err := coordinator.EnsureDFU(); err != nil {
		if errors.Is(err, dfu.ErrBaudDetectFailed) {
			return fmt.Errorf("Detect baudrate fail, can not get the baudrate")
		}
		return err
	}

	info := ymodem.FileInfo{
		Name:    filepath.Base(filePath),
		Length:  stat.Size(),
		ModTime: stat.ModTime(),
	}
	observer := progress.NewLogrusObserver(log)
	if err := coordinator.SendFirmware(file, info, observer); err != nil {
		log.WithError(err).Error("firmware transfer failed")
		if errors.Is(err, dfu.ErrDFUEntryFailed) {
			return fmt.Errorf("enter dfu mode fail")
		}
		return fmt.Errorf("Upload Failed")
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
