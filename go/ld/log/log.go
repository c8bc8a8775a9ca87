/*
Copyright 2026 The Lodestone Authors

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

// Package log is the single point of entry to logging for the driver.
// It wraps glog behind function variables so that the logging
// implementation can be swapped without touching call sites.
package log

import (
	goflag "flag"

	"github.com/golang/glog"
	"github.com/spf13/pflag"
)

var (
	// V quickly checks if the logging verbosity meets a threshold.
	V = glog.V
	// Flush ensures any pending I/O is written.
	Flush = glog.Flush

	// Info formats arguments like fmt.Print.
	Info = glog.Info
	// Infof formats arguments like fmt.Printf.
	Infof = glog.Infof
	// InfoDepth formats arguments like fmt.Print and uses depth to choose which call frame to log.
	InfoDepth = glog.InfoDepth

	// Warning formats arguments like fmt.Print.
	Warning = glog.Warning
	// Warningf formats arguments like fmt.Printf.
	Warningf = glog.Warningf
	// WarningDepth formats arguments like fmt.Print and uses depth to choose which call frame to log.
	WarningDepth = glog.WarningDepth

	// Error formats arguments like fmt.Print.
	Error = glog.Error
	// Errorf formats arguments like fmt.Printf.
	Errorf = glog.Errorf
	// ErrorDepth formats arguments like fmt.Print and uses depth to choose which call frame to log.
	ErrorDepth = glog.ErrorDepth

	// Exit formats arguments like fmt.Print and exits.
	Exit = glog.Exit
	// Exitf formats arguments like fmt.Printf and exits.
	Exitf = glog.Exitf

	// Fatal formats arguments like fmt.Print and exits after logging a stack trace.
	Fatal = glog.Fatal
	// Fatalf formats arguments like fmt.Printf and exits after logging a stack trace.
	Fatalf = glog.Fatalf
)

// RegisterFlags installs the glog logging flags on the given flag set.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, name := range []string{
		"v", "logtostderr", "alsologtostderr", "stderrthreshold",
		"log_dir", "log_backtrace_at", "vmodule",
	} {
		if f := goflag.CommandLine.Lookup(name); f != nil {
			fs.AddGoFlag(f)
		}
	}
}
