package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"testing"

	"github.com/jmoiron/sqlx"
)

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli := &commandLine{db: &sqlx.DB{}}

	origRun := gooseRunFunc
	defer func() { gooseRunFunc = origRun }()
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a VERSION argument"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			checkCLIErr(t, err, tt)
		})
	}
}

func Test_commandLine_run_usage(t *testing.T) {
	cli := &commandLine{}

	tests := []cliTest{
		{name: "no command", args: nil, wantErr: errHelp},
		{name: "unknown command", args: []string{"frobnicate"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			checkCLIErr(t, err, tt)
		})
	}
}

func checkCLIErr(t *testing.T, err error, tt cliTest) {
	t.Helper()
	if tt.wantErr != nil {
		if err != tt.wantErr {
			t.Fatalf("run() error = %v; want %v", err, tt.wantErr)
		}
		return
	}
	if tt.wantErrStr != "" {
		if err == nil || err.Error() != tt.wantErrStr {
			t.Fatalf("run() error = %v; want %q", err, tt.wantErrStr)
		}
		return
	}
	if err != nil {
		t.Fatalf("run() error = %v; want nil", err)
	}
}
