// Package seed loads places, hotels, events and paths from a YAML fixture.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"trip-planner/internal/database"
	"trip-planner/internal/models"
	"trip-planner/internal/routing"
)

// Path is a path entry in a seed file
type Path struct {
	From      string           `yaml:"from"`
	To        string           `yaml:"to"`
	Mode      string           `yaml:"mode"`
	Distance  float64          `yaml:"distance"`
	Direction models.Direction `yaml:"direction"`
	RoadID    string           `yaml:"roadId"`
}

// File is the seed document
type File struct {
	Places []models.Place `yaml:"places"`
	Hotels []models.Hotel `yaml:"hotels"`
	Events []models.Event `yaml:"events"`
	Paths  []Path         `yaml:"paths"`
}

// Summary counts what an import created and skipped
type Summary struct {
	Created int
	Skipped int
}

// EdgeWriter writes paths into the routing graph
type EdgeWriter interface {
	UpsertEdge(ctx context.Context, in routing.EdgeInput) (*routing.EdgeSnapshot, error)
}

// LoadFile parses a seed file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// Apply creates every entity and path. Entities that already exist are
// skipped; paths are upserted after all entities so endpoints resolve.
func Apply(ctx context.Context, db database.DataStore, edges EdgeWriter, f *File) (Summary, error) {
	var sum Summary

	count := func(kind, id string, err error) error {
		switch {
		case err == nil:
			sum.Created++
		case errors.Is(err, database.ErrDuplicate):
			sum.Skipped++
		default:
			return fmt.Errorf("failed to import %s %s: %w", kind, id, err)
		}
		return nil
	}

	for i := range f.Places {
		_, err := db.Places().Create(ctx, &f.Places[i])
		if err := count("place", f.Places[i].ID, err); err != nil {
			return sum, err
		}
	}
	for i := range f.Hotels {
		_, err := db.Hotels().Create(ctx, &f.Hotels[i])
		if err := count("hotel", f.Hotels[i].ID, err); err != nil {
			return sum, err
		}
	}
	for i := range f.Events {
		_, err := db.Events().Create(ctx, &f.Events[i])
		if err := count("event", f.Events[i].ID, err); err != nil {
			return sum, err
		}
	}

	for _, p := range f.Paths {
		_, err := edges.UpsertEdge(ctx, routing.EdgeInput{
			From:      p.From,
			To:        p.To,
			Mode:      p.Mode,
			Distance:  p.Distance,
			RoadRef:   p.RoadID,
			Direction: p.Direction,
		})
		if err != nil {
			return sum, fmt.Errorf("failed to import path %s->%s: %w", p.From, p.To, err)
		}
		sum.Created++
	}

	log.Printf("[SEED] Import finished: places=%d hotels=%d events=%d paths=%d created=%d skipped=%d",
		len(f.Places), len(f.Hotels), len(f.Events), len(f.Paths), sum.Created, sum.Skipped)
	return sum, nil
}
