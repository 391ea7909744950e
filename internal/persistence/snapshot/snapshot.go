package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// Snapshot is the durable form of the game state. Its JSON encoding is the
// blob stored under the state key.
type Snapshot struct {
	Version            int                   `json:"version"`
	Businesses         map[string]BusinessV1 `json:"businesses"`
	Managers           map[string]ManagerV1  `json:"managers"`
	Wallet             WalletV1              `json:"wallet"`
	LastSavedTimestamp time.Time             `json:"lastSavedTimestamp"`
	// OfflineEarnings is reconciled income the player has not collected yet.
	OfflineEarnings float64 `json:"offlineEarnings,omitempty"`
}

type BusinessV1 struct {
	Amount     int       `json:"amount"`
	IsWorking  bool      `json:"isWorking"`
	WorkEndsAt time.Time `json:"workTimestamp"`
	StartedAt  time.Time `json:"startTime"`
}

type ManagerV1 struct {
	IsUnlocked bool `json:"isUnlocked"`
}

type WalletV1 struct {
	Money float64 `json:"money"`
}

// Header is written as the first line of exported snapshot files.
type Header struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
}

func Encode(snap Snapshot) (string, error) {
	if snap.Version == 0 {
		snap.Version = Version
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func Decode(s string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(s), &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return snap, err
	}
	return snap, nil
}

// Validate rejects snapshots no engine state could have produced.
func (s Snapshot) Validate() error {
	if s.Version > Version {
		return fmt.Errorf("snapshot version %d is newer than supported %d", s.Version, Version)
	}
	if math.IsNaN(s.Wallet.Money) || math.IsInf(s.Wallet.Money, 0) || s.Wallet.Money < 0 {
		return fmt.Errorf("snapshot wallet: invalid money %v", s.Wallet.Money)
	}
	if math.IsNaN(s.OfflineEarnings) || math.IsInf(s.OfflineEarnings, 0) || s.OfflineEarnings < 0 {
		return fmt.Errorf("snapshot: invalid pending offline earnings %v", s.OfflineEarnings)
	}
	for id, b := range s.Businesses {
		if b.Amount < 0 {
			return fmt.Errorf("snapshot business %s: negative amount %d", id, b.Amount)
		}
		if b.IsWorking && b.WorkEndsAt.Before(b.StartedAt) {
			return fmt.Errorf("snapshot business %s: cycle ends before it starts", id)
		}
	}
	return nil
}

func WriteFile(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := writeCompressed(f, snap); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeCompressed(w io.Writer, snap Snapshot) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)

	hb, _ := json.Marshal(Header{Version: Version, SavedAt: snap.LastSavedTimestamp})
	body, err := Encode(snap)
	if err != nil {
		enc.Close()
		return err
	}
	for _, chunk := range []string{string(hb), "\n", body, "\n"} {
		if _, err := bw.WriteString(chunk); err != nil {
			enc.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func ReadFile(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)

	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version > Version {
		return snap, fmt.Errorf("snapshot file version %d is newer than supported %d", h.Version, Version)
	}

	body, err := br.ReadBytes('\n')
	if err != nil && len(body) == 0 {
		return snap, fmt.Errorf("read body: %w", err)
	}
	return Decode(string(body))
}
