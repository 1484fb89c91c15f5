package store

import (
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/fedepagnotta/tp0-distribuidos/internal/bet"
)

func TestScanOnMissingFileReturnsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "bets.csv"))
	bets, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(bets) != 0 {
		t.Fatalf("bets = %v, want empty", bets)
	}
}

func TestAppendThenScanPreservesOrder(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "bets.csv"))

	first := []bet.Bet{
		{AgencyID: 1, FirstName: "Juan", LastName: "Perez", Document: "1", Birthdate: "1990-01-01", Number: 10},
		{AgencyID: 1, FirstName: "Ana", LastName: "Gomez", Document: "2", Birthdate: "1991-01-01", Number: 20},
	}
	second := []bet.Bet{
		{AgencyID: 2, FirstName: "Luis", LastName: "Diaz", Document: "3", Birthdate: "1992-01-01", Number: WinningNumber},
	}

	if err := s.Append(first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := append(append([]bet.Bet{}, first...), second...)
	if len(got) != len(want) {
		t.Fatalf("got %d bets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bet %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestIsWinner(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "bets.csv"))
	winner := bet.Bet{Number: WinningNumber}
	loser := bet.Bet{Number: WinningNumber + 1}
	if !s.IsWinner(winner) {
		t.Fatalf("expected bet with winning number to be a winner")
	}
	if s.IsWinner(loser) {
		t.Fatalf("expected bet with non-winning number to not be a winner")
	}
}

func TestConcurrentAppendsDoNotCorruptScan(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "bets.csv"))
	const agencies = 20

	var wg sync.WaitGroup
	for i := 0; i < agencies; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			b := bet.Bet{AgencyID: id, FirstName: "A", LastName: "B", Document: strconv.Itoa(id), Birthdate: "2000-01-01", Number: id}
			if err := s.Append([]bet.Bet{b}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != agencies {
		t.Fatalf("got %d bets, want %d", len(got), agencies)
	}
}
