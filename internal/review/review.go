// Package review drives the interactive backlog review session. Every
// decision is written to the override ledger immediately so an interrupted
// session loses nothing.
package review

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/neetlogiq/collegematch/internal/ledger"
	"github.com/neetlogiq/collegematch/internal/matcher"
	"github.com/neetlogiq/collegematch/internal/phonetics"
	"github.com/neetlogiq/collegematch/internal/registry"
)

const maxShortlist = 5

// Candidate is one shortlisted registry record presented to the reviewer.
type Candidate struct {
	Institution *registry.Institution
	Score       float64
	Phonetic    bool
}

// Session is one interactive review run over the ledger backlog.
type Session struct {
	id        string
	idx       *registry.Index
	ledger    *ledger.Ledger
	reviewer  string
	threshold float64

	in  *bufio.Reader
	out io.Writer
}

// NewSession builds a review session. The threshold is the relaxed
// shortlist floor, deliberately below the automated fuzzy threshold so the
// reviewer sees near misses the cascade refused.
func NewSession(idx *registry.Index, l *ledger.Ledger, reviewer string, threshold float64, in io.Reader, out io.Writer) *Session {
	if reviewer == "" {
		reviewer = "system_user"
	}
	return &Session{
		id:        uuid.New().String(),
		idx:       idx,
		ledger:    l,
		reviewer:  reviewer,
		threshold: threshold,
		in:        bufio.NewReader(in),
		out:       out,
	}
}

// ID returns the session identifier stamped on every decision.
func (s *Session) ID() string {
	return s.id
}

// Run walks the backlog best-first and prompts for a decision on each
// entry. It returns when the backlog is exhausted or the reviewer quits.
func (s *Session) Run() error {
	backlog, err := s.ledger.Backlog()
	if err != nil {
		return fmt.Errorf("load backlog: %w", err)
	}

	if len(backlog) == 0 {
		fmt.Fprintln(s.out, "No backlog entries require review.")
		return nil
	}

	fmt.Fprintf(s.out, "=== Review Session %s ===\n", s.id)
	fmt.Fprintf(s.out, "Reviewer: %s\n", s.reviewer)
	fmt.Fprintf(s.out, "%d backlog entries to review\n\n", len(backlog))

	reviewed := 0
	for i, entry := range backlog {
		fmt.Fprintf(s.out, "=== Entry %d of %d ===\n", i+1, len(backlog))

		quit, err := s.reviewEntry(entry)
		if err != nil {
			return err
		}
		if quit {
			fmt.Fprintf(s.out, "\nSession ended early. Entries reviewed: %d\n", reviewed)
			return nil
		}
		reviewed++
	}

	fmt.Fprintf(s.out, "\nSession complete. Entries reviewed: %d\n", reviewed)
	return nil
}

// reviewEntry shows one backlog entry with its shortlist and records the
// reviewer's decision. The quit return ends the session.
func (s *Session) reviewEntry(entry ledger.BacklogEntry) (bool, error) {
	fmt.Fprintf(s.out, "Raw name:   %s\n", entry.RawName)
	fmt.Fprintf(s.out, "State:      %s\n", entry.NormalizedState)
	fmt.Fprintf(s.out, "Records:    %d\n\n", entry.Records)

	shortlist := s.Shortlist(entry.NormalizedName, entry.NormalizedState)
	if len(shortlist) == 0 {
		fmt.Fprintln(s.out, "No candidates above the review threshold.")
	} else {
		fmt.Fprintf(s.out, "Found %d candidate matches:\n\n", len(shortlist))
		for i, cand := range shortlist {
			fmt.Fprintf(s.out, "%d. %s\n", i+1, cand.Institution.ID)
			fmt.Fprintf(s.out, "   Name:    %s\n", cand.Institution.Name)
			fmt.Fprintf(s.out, "   Address: %s\n", cand.Institution.Address)
			fmt.Fprintf(s.out, "   Score:   %.3f", cand.Score)
			if cand.Phonetic {
				fmt.Fprint(s.out, " (phonetic match)")
			}
			fmt.Fprintln(s.out)
			fmt.Fprintln(s.out)
		}
	}

	for {
		fmt.Fprintln(s.out, "Options:")
		for i := range shortlist {
			fmt.Fprintf(s.out, "  %d - Accept candidate %d\n", i+1, i+1)
		}
		fmt.Fprintln(s.out, "  n - Record as new institution")
		fmt.Fprintln(s.out, "  s - Skip this entry")
		fmt.Fprintln(s.out, "  q - Quit review session")
		fmt.Fprint(s.out, "Your decision: ")

		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			// Input exhausted; treat like quit so decisions so far stand.
			return true, nil
		}
		choice := strings.TrimSpace(strings.ToLower(line))

		switch choice {
		case "q":
			return true, nil
		case "s":
			fmt.Fprintln(s.out, "Skipped.")
			return false, nil
		case "n":
			return false, s.recordNewInstitution(entry)
		default:
			num, convErr := strconv.Atoi(choice)
			if convErr != nil || num < 1 || num > len(shortlist) {
				fmt.Fprintf(s.out, "Invalid choice %q. Please try again.\n", choice)
				continue
			}
			return false, s.recordAccept(entry, shortlist[num-1].Institution)
		}
	}
}

func (s *Session) recordAccept(entry ledger.BacklogEntry, inst *registry.Institution) error {
	err := s.ledger.AppendOverride(ledger.OverrideMapping{
		NormalizedName:  entry.NormalizedName,
		NormalizedState: entry.NormalizedState,
		CanonicalID:     inst.ID,
		Source:          ledger.SourceManual,
		Reviewer:        s.reviewer,
		SessionID:       s.id,
	})
	if err != nil {
		return fmt.Errorf("record override: %w", err)
	}
	if err := s.ledger.ClearBacklogEntry(entry.NormalizedName, entry.NormalizedState); err != nil {
		return fmt.Errorf("clear backlog entry: %w", err)
	}

	fmt.Fprintf(s.out, "Mapped to %s.\n", inst.ID)
	return nil
}

func (s *Session) recordNewInstitution(entry ledger.BacklogEntry) error {
	added, err := s.ledger.AppendNewInstitution(ledger.NewInstitution{
		Name:      entry.RawName,
		State:     entry.NormalizedState,
		Reviewer:  s.reviewer,
		SessionID: s.id,
	})
	if err != nil {
		return fmt.Errorf("record new institution: %w", err)
	}

	// Map the pair to the new id so reruns resolve it before the next
	// snapshot promotion.
	err = s.ledger.AppendOverride(ledger.OverrideMapping{
		NormalizedName:  entry.NormalizedName,
		NormalizedState: entry.NormalizedState,
		CanonicalID:     added.ID,
		Source:          ledger.SourceManual,
		Reviewer:        s.reviewer,
		SessionID:       s.id,
	})
	if err != nil {
		return fmt.Errorf("record override: %w", err)
	}
	if err := s.ledger.ClearBacklogEntry(entry.NormalizedName, entry.NormalizedState); err != nil {
		return fmt.Errorf("clear backlog entry: %w", err)
	}

	fmt.Fprintf(s.out, "Recorded new institution %s.\n", added.ID)
	return nil
}

// Shortlist ranks registry candidates for one backlog pair at the relaxed
// review threshold. Candidates in the entry's state are scanned; a phonetic
// agreement is surfaced but never required.
func (s *Session) Shortlist(normalizedName, normalizedState string) []Candidate {
	pool := s.idx.InState(normalizedState)
	if len(pool) == 0 {
		pool = s.idx.All()
	}

	var out []Candidate
	for _, inst := range pool {
		score := matcher.Similarity(normalizedName, inst.NormalizedName)
		if score < s.threshold {
			continue
		}
		out = append(out, Candidate{
			Institution: inst,
			Score:       score,
			Phonetic:    phonetics.Match(normalizedName, inst.NormalizedName),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Institution.CompositeKey < out[j].Institution.CompositeKey
	})

	if len(out) > maxShortlist {
		out = out[:maxShortlist]
	}
	return out
}
