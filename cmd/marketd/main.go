package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	cxmarket "github.com/cryptoxpress/cxmarket"
	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name: "marketd",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Value: "", Usage: "market owner address", EnvVars: []string{"OWNER"}},
			&cli.StringFlag{Name: "db_dir", Value: "./data/bolt", Usage: "bolt db dir path", EnvVars: []string{"DB_DIR"}},
			&cli.BoolFlag{Name: "mongo_flag", Value: false, Usage: "run with mongo registry store", EnvVars: []string{"MONGO_FLAG"}},
			&cli.StringFlag{Name: "mongo", Value: "mongodb://127.0.0.1:27017", Usage: "mongo uri", EnvVars: []string{"MONGO"}},
			&cli.StringFlag{Name: "mysql", Value: "root@tcp(127.0.0.1:3306)/cxmarket?charset=utf8mb4&parseTime=True&loc=Local", Usage: "mysql dsn", EnvVars: []string{"MYSQL"}},
			&cli.BoolFlag{Name: "sqlite_flag", Value: false, Usage: "run with sqlite instead of mysql", EnvVars: []string{"SQLITE_FLAG"}},
			&cli.StringFlag{Name: "sqlite_dir", Value: "./data/sqlite", Usage: "sqlite dir path", EnvVars: []string{"SQLITE_DIR"}},
			&cli.Uint64Flag{Name: "chain_id", Value: 1, Usage: "relay chain id", EnvVars: []string{"CHAIN_ID"}},
			&cli.StringFlag{Name: "kafka", Value: "", Usage: "kafka uri, empty disables the sink", EnvVars: []string{"KAFKA"}},
			&cli.StringFlag{Name: "port", Value: ":8080", EnvVars: []string{"PORT"}},
		},
		Action: run,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	m := cxmarket.New(
		schema.HexToAddress(c.String("owner")),
		c.String("db_dir"), c.Bool("mongo_flag"), c.String("mongo"),
		c.String("mysql"), c.String("sqlite_dir"), c.Bool("sqlite_flag"),
		c.Uint64("chain_id"), c.String("kafka"),
	)
	go m.Run(c.String("port"))

	<-signals
	m.Close()

	return nil
}
