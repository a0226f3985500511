// Command pickup-counter is the tool the counter device runs: it verifies a
// customer's pickup code and hands the order over.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/counter"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func usage() {
	fmt.Fprintf(os.Stderr, "Cafeteria pickup counter\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  pickup-counter [options] verify <code>\n")
	fmt.Fprintf(os.Stderr, "  pickup-counter [options] complete <order-id>\n")
	fmt.Fprintf(os.Stderr, "  pickup-counter [options] health\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

func main() {
	_ = godotenv.Load() // load .env if it exists

	var (
		api     = flag.String("api", getenv("COUNTER_API_URL", "http://localhost:8082"), "cafeteria API base URL")
		grpcAdr = flag.String("grpc", getenv("COUNTER_GRPC_ADDR", "localhost:50051"), "cafeteria gRPC health address")
		key     = flag.String("key", os.Getenv("COUNTER_KEY"), "counter device key")
		staff   = flag.String("staff", os.Getenv("COUNTER_STAFF_ID"), "staff identity used to complete orders")
		timeout = flag.Duration("timeout", 5*time.Second, "request timeout")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := counter.NewClient(*api, *key, *staff)
	switch cmd := flag.Arg(0); {
	case cmd == "verify" && flag.NArg() == 2:
		s, err := c.Verify(ctx, flag.Arg(1))
		if errors.Is(err, apperr.ErrNotFound) {
			fmt.Println("no ready order for that code")
			os.Exit(1)
		}
		exitOn(err)
		fmt.Printf("order %s  code %s  total %s\n", s.OrderID, s.PickupCode, s.Total.StringFixed(2))
		for _, l := range s.Items {
			fmt.Printf("  %2d x %s", l.Quantity, l.Name)
			if l.Instructions != "" {
				fmt.Printf("  (%s)", l.Instructions)
			}
			fmt.Println()
		}
		if s.Notes != "" {
			fmt.Printf("notes: %s\n", s.Notes)
		}
	case cmd == "complete" && flag.NArg() == 2:
		o, err := c.Complete(ctx, flag.Arg(1))
		exitOn(err)
		fmt.Printf("order %s %s\n", o.ID, o.Status)
	case cmd == "health" && flag.NArg() == 1:
		ok, err := counter.Serving(ctx, *grpcAdr)
		exitOn(err)
		if !ok {
			fmt.Println("not serving")
			os.Exit(1)
		}
		fmt.Println("serving")
	default:
		usage()
		os.Exit(2)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
