// AngelaMos | 2026
// seed.go

// Package seed loads the demo accounts and catalogue used for local
// development.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

type PDFChecker interface {
	PDFExists(ctx context.Context, name string) (bool, error)
}

type Options struct {
	Password     string
	HashPassword func(string) (string, error)
	Logger       *slog.Logger
}

type Summary struct {
	Users     int
	Documents int
	Skipped   []string
}

type account struct {
	username string
	role     string
	status   string
}

var accounts = []account{
	{"member", membership.RoleMember, membership.StatusInactive},
	{"librarian", membership.RoleLibrarian, membership.StatusNotApplicable},
	{"attendant", membership.RoleAttendant, membership.StatusNotApplicable},
	{"manager", membership.RoleManager, membership.StatusNotApplicable},
}

type sample struct {
	title    string
	author   string
	summary  string
	status   string
	physical bool
	pdf      string
}

var samples = []sample{
	{"Les Miserables", "Victor Hugo",
		"Epic social fresco of nineteenth century France.",
		catalogue.StatusAvailable, true, ""},
	{"Les Fleurs du mal", "Charles Baudelaire",
		"Poems on beauty and decadence.",
		catalogue.StatusBorrowed, true, ""},
	{"Explosion du globe", "Hector Fleischmann",
		"Apocalyptic tale.",
		catalogue.StatusAvailable, false, "explosion_du_globe.pdf"},
	{"La Singuliere Aventure", "Abel Hermant",
		"Adventure novel.",
		catalogue.StatusAvailable, true, "la_singuliere_aventure.pdf"},
	{"La Rue", "Jules Valles",
		"Social chronicle.",
		catalogue.StatusAvailable, true, "la_rue.pdf"},
}

// Run inserts the demo data into an empty store. Users and documents are
// seeded independently and each set is skipped when its table already has
// rows. A digital sample whose PDF is missing is reduced to its physical
// copy, or skipped when it has none.
func Run(
	ctx context.Context,
	st store.Store,
	pdfs PDFChecker,
	opts Options,
) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	summary := &Summary{}

	err := st.WithinTx(ctx, func(repos store.Repos) error {
		users, err := repos.Users.Count(ctx, membership.CountFilter{})
		if err != nil {
			return err
		}
		if users == 0 {
			if err := seedUsers(ctx, repos, opts); err != nil {
				return err
			}
			summary.Users = len(accounts)
		}

		docs, err := repos.Documents.Count(ctx, catalogue.CountFilter{})
		if err != nil {
			return err
		}
		if docs > 0 {
			return nil
		}

		for _, s := range samples {
			doc := &catalogue.Document{
				ID:         uuid.NewString(),
				Title:      s.title,
				Author:     optional(s.author),
				Summary:    optional(s.summary),
				Status:     s.status,
				IsPhysical: s.physical,
			}

			if s.pdf != "" {
				exists, err := pdfs.PDFExists(ctx, s.pdf)
				if err != nil {
					return fmt.Errorf("check %s: %w", s.pdf, err)
				}
				if exists {
					name := s.pdf
					doc.IsDigital = true
					doc.FilePath = &name
				} else {
					logger.WarnContext(ctx, "sample pdf missing", "file", s.pdf)
				}
			}

			if !doc.IsPhysical && !doc.IsDigital {
				summary.Skipped = append(summary.Skipped, s.title)
				continue
			}

			if err := repos.Documents.Create(ctx, doc); err != nil {
				return fmt.Errorf("create %q: %w", s.title, err)
			}
			summary.Documents++
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	return summary, nil
}

func seedUsers(ctx context.Context, repos store.Repos, opts Options) error {
	hash, err := opts.HashPassword(opts.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	for _, a := range accounts {
		err := repos.Users.Create(ctx, &membership.User{
			ID:                 uuid.NewString(),
			Username:           a.username,
			PasswordHash:       hash,
			Role:               a.role,
			SubscriptionStatus: a.status,
			SubscriptionType:   membership.PlanNone,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", a.username, err)
		}
	}

	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
