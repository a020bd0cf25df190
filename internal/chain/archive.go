package chain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Archive format: zstd-compressed JSONL. First line is the snapshot
// header, every following line one contract row. Plain JSONL is also
// accepted when the path has no .zst suffix.

type archiveHeader struct {
	Spot      float64   `json:"spot"`
	AsOf      time.Time `json:"as_of"`
	Contracts int       `json:"contracts"`
}

// WriteArchive persists a snapshot to path. The file is written to a
// temp sibling first and renamed into place so a crash never leaves a
// truncated archive behind.
func WriteArchive(path string, snap *Snapshot) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	err = writeArchiveTo(f, path, snap)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming archive: %w", err)
	}
	return nil
}

func writeArchiveTo(f *os.File, path string, snap *Snapshot) error {
	var w io.Writer = f
	var zw *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		zw = enc
		w = enc
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	header := archiveHeader{Spot: snap.Spot(), AsOf: snap.AsOf(), Contracts: snap.Len()}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, c := range snap.Contracts() {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("writing contract: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}

// ReadArchive loads a snapshot previously written by WriteArchive.
func ReadArchive(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty archive %s", path)
	}

	var header archiveHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("parsing archive header: %w", err)
	}

	var contracts []Contract
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c Contract
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		contracts = append(contracts, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	snap, err := NewSnapshot(header.Spot, header.AsOf, contracts)
	if err != nil {
		return nil, fmt.Errorf("rebuilding snapshot: %w", err)
	}
	return snap, nil
}
