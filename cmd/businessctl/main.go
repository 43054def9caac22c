package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/wolfman30/missedcall-flow/internal/business"
	"github.com/wolfman30/missedcall-flow/internal/catalog"
	"github.com/wolfman30/missedcall-flow/internal/category"
)

// businessctl registers or updates a business: its display name, profession
// and the addresses that receive new-request emails.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	b, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := business.NewDirectory(db).Upsert(ctx, b); err != nil {
		log.Fatalf("upsert: %v", err)
	}
	fmt.Printf("business %s saved (%d notify addresses)\n", b.ID, len(b.NotifyEmails))
}

// parseArgs builds a Business from flags. The profession must resolve in the
// default catalog so missed calls for the business can start a flow.
func parseArgs(args []string, stderr io.Writer) (business.Business, error) {
	fs := flag.NewFlagSet("businessctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.String("id", "", "business reference sent with missed calls")
	name := fs.String("name", "", "display name used in templates and emails")
	profession := fs.String("profession", "", "profession label, e.g. \"Vodoinstalater\"")
	emails := fs.String("emails", "", "comma-separated notification addresses")
	if err := fs.Parse(args); err != nil {
		return business.Business{}, err
	}

	b := business.Business{
		ID:         strings.TrimSpace(*id),
		Name:       strings.TrimSpace(*name),
		Profession: strings.TrimSpace(*profession),
	}
	if b.ID == "" || b.Name == "" {
		return business.Business{}, errors.New("-id and -name are required")
	}
	if b.Profession != "" {
		resolver, err := category.NewFromCatalog(catalog.Default(), category.StrictPolicy())
		if err != nil {
			return business.Business{}, err
		}
		if _, err := resolver.Resolve(b.Profession); err != nil {
			return business.Business{}, fmt.Errorf("profession: %w", err)
		}
	}
	for _, addr := range strings.Split(*emails, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			b.NotifyEmails = append(b.NotifyEmails, addr)
		}
	}
	return b, nil
}
