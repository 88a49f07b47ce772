// Command seed loads a starter catalog of services, professionals, and
// sample clients so a fresh environment is immediately bookable.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/lfmoreira/agendo/libs/db"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/model"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/outbox"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/storage"
)

func main() {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer pool.Close()

	store := storage.NewStore(pool, outbox.NewRepository())

	services := []model.Service{
		{Name: "Men's Haircut", Description: "Classic or modern cut", Price: "35.00", DurationMins: 30, IsActive: true},
		{Name: "Women's Haircut", Description: "Cut with wash and blow-dry", Price: "60.00", DurationMins: 60, IsActive: true},
		{Name: "Full Beard Trim", Description: "Beard with professional finish", Price: "25.00", DurationMins: 20, IsActive: true},
		{Name: "Cut and Beard", Description: "Complete combo", Price: "55.00", DurationMins: 45, IsActive: true},
		{Name: "Hair Coloring", Description: "Full coloring", Price: "120.00", DurationMins: 90, IsActive: true},
		{Name: "Deep Conditioning", Description: "Intensive treatment", Price: "45.00", DurationMins: 40, IsActive: true},
		{Name: "Event Styling", Description: "Styling for special occasions", Price: "80.00", DurationMins: 60, IsActive: true},
	}
	for i := range services {
		if err := store.CreateService(ctx, &services[i]); err != nil {
			log.Fatalf("create service %q: %v", services[i].Name, err)
		}
		fmt.Printf("service %s (%s)\n", services[i].Name, services[i].Price)
	}

	professionals := []model.ProfessionalProfile{
		{Name: "Joao Silva", Specialty: "Senior Barber", CommissionPercent: 60, IsAvailable: true},
		{Name: "Maria Santos", Specialty: "Hair Stylist", CommissionPercent: 55, IsAvailable: true},
		{Name: "Pedro Costa", Specialty: "Barber", CommissionPercent: 50, IsAvailable: true},
	}
	for i := range professionals {
		if err := store.CreateProfessional(ctx, &professionals[i]); err != nil {
			log.Fatalf("create professional %q: %v", professionals[i].Name, err)
		}
		if err := store.UpsertSchedule(ctx, professionals[i].ID, defaultSchedule(professionals[i].ID)); err != nil {
			log.Fatalf("schedule for %q: %v", professionals[i].Name, err)
		}
		fmt.Printf("professional %s (%s)\n", professionals[i].Name, professionals[i].Specialty)
	}

	clients := []model.ClientProfile{
		{Name: "Carlos Oliveira", Phone: "+5511944440000", Email: "carlos@example.com"},
		{Name: "Ana Paula", Phone: "+5511955550000", Email: "ana@example.com"},
		{Name: "Roberto Alves", Phone: "+5511966660000", Email: "roberto@example.com"},
	}
	for i := range clients {
		if err := store.CreateClient(ctx, &clients[i]); err != nil {
			log.Fatalf("create client %q: %v", clients[i].Name, err)
		}
		fmt.Printf("client %s\n", clients[i].Name)
	}

	fmt.Printf("seeded %d services, %d professionals, %d clients\n",
		len(services), len(professionals), len(clients))
}

// defaultSchedule is Monday through Friday 08:00-18:00 plus Saturday
// 08:00-13:00, matching the shop's walk-in hours.
func defaultSchedule(professionalID string) []model.ScheduleEntry {
	entries := make([]model.ScheduleEntry, 0, 6)
	for wd := int(time.Monday); wd <= int(time.Friday); wd++ {
		entries = append(entries, model.ScheduleEntry{
			ProfessionalID: professionalID,
			Weekday:        wd,
			IsWorking:      true,
			StartMinute:    8 * 60,
			EndMinute:      18 * 60,
		})
	}
	entries = append(entries, model.ScheduleEntry{
		ProfessionalID: professionalID,
		Weekday:        int(time.Saturday),
		IsWorking:      true,
		StartMinute:    8 * 60,
		EndMinute:      13 * 60,
	})
	return entries
}
