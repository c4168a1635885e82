package testutil

import (
	"log/slog"
	"time"

	"github.com/roach88/blockwire/internal/clock"
	"github.com/roach88/blockwire/internal/subgraph"
)

// Types and property keys of the social graph fixture.
const (
	PersonTypeBase subgraph.BaseURL      = "https://example.com/@alice/types/entity-type/person/"
	PersonTypeID   subgraph.VersionedURL = "https://example.com/@alice/types/entity-type/person/v/1"
	FriendTypeID   subgraph.VersionedURL = "https://example.com/@alice/types/entity-type/friend-of/v/1"
	NameKey                              = "https://example.com/@alice/types/property-type/name/"
)

// Epoch is the start time of fake clocks in tests.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// FakeClock returns a fake clock set to Epoch.
func FakeClock() *clock.Fake { return clock.NewFake(Epoch) }

// Logger returns a logger that discards everything.
func Logger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// Person returns a non-temporal person entity at edition 1.
func Person(id, name string) *subgraph.Entity {
	return &subgraph.Entity{
		Metadata: subgraph.EntityMetadata{
			RecordID:     subgraph.EntityRecordID{EntityID: subgraph.EntityID(id), EditionID: "1"},
			EntityTypeID: PersonTypeID,
		},
		Properties: map[string]any{NameKey: name},
	}
}

// Friend returns a friend-of link entity from left to right.
func Friend(id, left, right string) *subgraph.Entity {
	return &subgraph.Entity{
		Metadata: subgraph.EntityMetadata{
			RecordID:     subgraph.EntityRecordID{EntityID: subgraph.EntityID(id), EditionID: "1"},
			EntityTypeID: FriendTypeID,
		},
		Properties: map[string]any{},
		LinkData: &subgraph.LinkData{
			LeftEntityID:  subgraph.EntityID(left),
			RightEntityID: subgraph.EntityID(right),
		},
	}
}

// PersonType returns the person entity type.
func PersonType() *subgraph.EntityTypeWithMetadata {
	return &subgraph.EntityTypeWithMetadata{
		Schema: map[string]any{"title": "Person"},
		Metadata: subgraph.OntologyMetadata{
			RecordID: subgraph.OntologyRecordID{BaseURL: PersonTypeBase, Version: 1},
		},
	}
}

// Chain returns alice -l1-> bob -l2-> carol with the person type.
func Chain() subgraph.Elements {
	return subgraph.Elements{
		EntityTypes: []*subgraph.EntityTypeWithMetadata{PersonType()},
		Entities: []*subgraph.Entity{
			Person("alice", "Alice"),
			Person("bob", "Bob"),
			Person("carol", "Carol"),
			Friend("l1", "alice", "bob"),
			Friend("l2", "bob", "carol"),
		},
	}
}

// EntityIDs returns the IDs of the latest entity revisions in sg.
func EntityIDs(sg *subgraph.Subgraph) []string {
	var out []string
	for _, e := range subgraph.GetEntities(sg, true) {
		out = append(out, string(e.ID()))
	}
	return out
}
