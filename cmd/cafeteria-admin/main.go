// Command cafeteria-admin runs operator tasks against the store: applying
// migrations, seeding roles and hashing the counter device key.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MikeMC777/cafeteria/internal/config"
	"github.com/MikeMC777/cafeteria/internal/db"
	"github.com/MikeMC777/cafeteria/internal/logging"
	"github.com/MikeMC777/cafeteria/internal/user"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Cafeteria operator tool\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  cafeteria-admin migrate\n")
	fmt.Fprintf(os.Stderr, "  cafeteria-admin grant <identity> <customer|staff|admin> [display-name]\n")
	fmt.Fprintf(os.Stderr, "  cafeteria-admin hash-key <counter-key>\n")
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, "text")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch flag.Arg(0) {
	case "hash-key":
		if flag.NArg() != 2 {
			usage()
			os.Exit(2)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(flag.Arg(1)), bcrypt.DefaultCost)
		exitOn(err)
		fmt.Printf("COUNTER_KEY_HASH=%s\n", hash)
		return
	case "migrate", "grant":
	default:
		usage()
		os.Exit(2)
	}

	// Open applies pending migrations.
	d, err := db.Open(ctx, db.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseDSN,
		MaxOpenConns: 2,
		Timeout:      cfg.StoreTimeout,
	}, log)
	exitOn(err)
	defer d.Close()

	if flag.Arg(0) == "migrate" {
		fmt.Println("schema up to date")
		return
	}
	if flag.NArg() < 3 {
		usage()
		os.Exit(2)
	}
	users := user.NewService(user.NewSQLRepo(d), 0, log)
	p, err := users.Grant(ctx, flag.Arg(1), flag.Arg(3), user.Role(flag.Arg(2)))
	exitOn(err)
	fmt.Printf("%s is now %s\n", p.ID, p.Role)
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
