package main

import (
	"complaintflow/backend/internal/classifier"
	"complaintflow/backend/internal/complaint"
	"complaintflow/backend/internal/config"
	"complaintflow/backend/internal/storage"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  migrate                          create or update tables
  add-executor <name> [org]        register an executor
  deactivate-executor <id>         remove an executor from routing
  add-moderator <username> <name>  create a moderator; password from MODERATOR_PASSWORD
  show <complaint_id>              print a complaint with its history and statuses`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(config.LoadPostgres().DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	store := storage.NewStorageService(db, nil)
	// The admin CLI never classifies; it only uses the directory and read paths.
	svc := complaint.NewService(store, classifier.Disabled{}, nil, config.DefaultLifecycle(), nil)
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "migrate":
		if err := store.Migrate(); err != nil {
			log.Fatalf("Error running migrations: %v", err)
		}
		fmt.Println("Migrations complete.")

	case "add-executor":
		if len(os.Args) < 3 || len(os.Args) > 4 {
			fmt.Println("Usage: admin add-executor <name> [organization]")
			os.Exit(1)
		}
		in := complaint.ExecutorInput{Name: os.Args[2]}
		if len(os.Args) == 4 {
			org := os.Args[3]
			in.Organization = &org
		}
		e, err := svc.CreateExecutor(ctx, in)
		if err != nil {
			log.Fatalf("Error adding executor: %v", err)
		}
		fmt.Printf("Executor %d (%s) has been added.\n", e.ExecutorID, e.Name)

	case "deactivate-executor":
		id := parseID("deactivate-executor <id>")
		e, err := svc.DeactivateExecutor(ctx, id)
		if err != nil {
			log.Fatalf("Error deactivating executor: %v", err)
		}
		fmt.Printf("Executor %d (%s) has been deactivated.\n", e.ExecutorID, e.Name)

	case "add-moderator":
		if len(os.Args) != 4 {
			fmt.Println("Usage: MODERATOR_PASSWORD=... admin add-moderator <username> <full_name>")
			os.Exit(1)
		}
		m, err := svc.CreateModerator(ctx, complaint.ModeratorInput{
			Username: os.Args[2],
			FullName: os.Args[3],
			Password: os.Getenv("MODERATOR_PASSWORD"),
		})
		if err != nil {
			log.Fatalf("Error adding moderator: %v", err)
		}
		fmt.Printf("Moderator %d (%s) has been added.\n", m.ModeratorID, m.Username)

	case "show":
		id := parseID("show <complaint_id>")
		if err := showComplaint(ctx, svc, id); err != nil {
			log.Fatalf("Error loading complaint: %v", err)
		}

	default:
		fmt.Printf("Unknown command %q\n\n%s\n", command, usage)
		os.Exit(1)
	}
}

func parseID(form string) int64 {
	if len(os.Args) != 3 {
		fmt.Println("Usage: admin " + form)
		os.Exit(1)
	}
	id, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil || id <= 0 {
		fmt.Println("Invalid ID. Please provide a positive integer.")
		os.Exit(1)
	}
	return id
}

func showComplaint(ctx context.Context, svc *complaint.Service, id int64) error {
	c, err := svc.GetComplaint(ctx, id)
	if err != nil {
		return err
	}
	history, err := svc.GetHistory(ctx, id)
	if err != nil {
		return err
	}
	statuses, err := svc.ListStatuses(ctx, id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"complaint": c,
		"history":   history,
		"statuses":  statuses,
	})
}
