package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"
	"github.com/joho/godotenv"
)

const BoardDVersion = "0.0.1"

func main() {
	usage := `Board reference server.

Serves the question board http api and the /ws push channel.
A development collaborator for the sync engine, not a production server.

Usage:
    boardd [--addr=<addr>] [--db=<path>] [--jwt_secret=<secret>]

Options:
    -h --help              Show this screen.
    --version              Show version.
    --addr=<addr>          Listen address [default from BOARDD_ADDR, else :8000].
    --db=<path>            Sqlite database path [default from BOARDD_DB, else board.db].
    --jwt_secret=<secret>  HS256 signing secret [default from BOARDD_JWT_SECRET].`

	godotenv.Load()
	// glog flags (-logtostderr, -v)
	flag.CommandLine.Parse([]string{"-logtostderr=true"})

	opts, err := docopt.ParseArgs(usage, os.Args[1:], BoardDVersion)
	if err != nil {
		panic(err)
	}

	addr, _ := opts.String("--addr")
	if addr == "" {
		addr = os.Getenv("BOARDD_ADDR")
	}
	if addr == "" {
		addr = ":8000"
	}

	dbPath, _ := opts.String("--db")
	if dbPath == "" {
		dbPath = os.Getenv("BOARDD_DB")
	}
	if dbPath == "" {
		dbPath = "board.db"
	}

	jwtSecret, _ := opts.String("--jwt_secret")
	if jwtSecret == "" {
		jwtSecret = os.Getenv("BOARDD_JWT_SECRET")
	}
	if jwtSecret == "" {
		glog.Exitf("[d]missing jwt secret (set --jwt_secret or BOARDD_JWT_SECRET)\n")
	}

	db, err := openDb(dbPath)
	if err != nil {
		glog.Exitf("[d]open db error = %s\n", err)
	}
	defer db.Close()

	server := NewServer(db, []byte(jwtSecret))
	defer server.Close()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		httpServer.Close()
	}()

	glog.Infof("[d]listening on %s\n", addr)
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		glog.Errorf("[d]server closed = %s\n", err)
	}
}
