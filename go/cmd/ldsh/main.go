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

// ldsh runs a query statement against a Lodestone service and prints
// the result rows as JSON, one row per line.
//
//	ldsh --server localhost:8080 --table users "SELECT id, name FROM users"
//
// Bind variables are passed as --bind name=json and force a separate
// prepare round trip before execution.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"lodestone.io/lodestone/go/ld/driver"
	"lodestone.io/lodestone/go/ld/log"
	"lodestone.io/lodestone/go/types"
)

var (
	server      = pflag.String("server", "", "service endpoint, host or URL")
	table       = pflag.String("table", "", "table the statement targets")
	timeout     = pflag.Duration("timeout", 30*time.Second, "per-request timeout")
	consistency = pflag.String("consistency", "eventual", "read consistency: eventual or absolute")
	prepareOnly = pflag.Bool("prepare-only", false, "compile the statement without executing it")
	maxReadKB   = pflag.Int("max-read-kb", 0, "per-batch read limit in KB, 0 for the service default")
	maxWriteKB  = pflag.Int("max-write-kb", 0, "per-batch write limit in KB, 0 for the service default")
	binds       = pflag.StringArray("bind", nil, "bind variable as name=json, repeatable")
)

func main() {
	log.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
	defer log.Flush()

	if err := run(context.Background(), strings.Join(pflag.Args(), " ")); err != nil {
		fmt.Fprintf(os.Stderr, "ldsh: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, statement string) error {
	if statement == "" {
		return fmt.Errorf("no statement given")
	}
	conn, err := driver.NewClient(driver.Config{
		Endpoint: *server,
		Timeout:  *timeout,
	})
	if err != nil {
		return err
	}

	cons, err := parseConsistency(*consistency)
	if err != nil {
		return err
	}

	q := driver.NewQuery(statement, *table).
		SetTimeout(*timeout).
		SetConsistency(cons).
		SetMaxReadKB(*maxReadKB).
		SetMaxWriteKB(*maxWriteKB)

	if *prepareOnly {
		res, err := q.SetPrepareOnly().Execute(ctx, conn)
		if err != nil {
			return err
		}
		if plan := res.PreparedStatement().QueryPlan(); plan != "" {
			fmt.Println(plan)
		}
		return nil
	}

	if len(*binds) > 0 {
		// Variables bind to a prepared statement, so compile first.
		res, err := q.SetPrepareOnly().Execute(ctx, conn)
		if err != nil {
			return err
		}
		ps := res.PreparedStatement()
		for _, b := range *binds {
			name, raw, ok := strings.Cut(b, "=")
			if !ok {
				return fmt.Errorf("malformed --bind %q, want name=json", b)
			}
			v, err := types.FromJSON([]byte(raw))
			if err != nil {
				return fmt.Errorf("bind variable %q: %w", name, err)
			}
			if err := ps.SetVariable(name, v); err != nil {
				return err
			}
		}
		q = driver.NewPreparedQuery(ps).
			SetTimeout(*timeout).
			SetConsistency(cons).
			SetMaxReadKB(*maxReadKB).
			SetMaxWriteKB(*maxWriteKB)
	}

	res, err := q.Execute(ctx, conn)
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		fmt.Println(row.String())
	}
	c := res.Consumed()
	log.Infof("%d rows, consumed read %d KB / %d units, write %d KB",
		len(res.Rows()), c.ReadKB, c.ReadUnits, c.WriteKB)
	return nil
}

func parseConsistency(s string) (driver.Consistency, error) {
	switch strings.ToLower(s) {
	case "eventual":
		return driver.Eventual, nil
	case "absolute":
		return driver.Absolute, nil
	default:
		return driver.Eventual, fmt.Errorf("unknown consistency %q", s)
	}
}
