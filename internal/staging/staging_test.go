package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/nucleus/harvest-core/pkg/addi"
)

func TestBatchWriter_ConcurrentWritesStayFramed(t *testing.T) {
	w, err := NewBatchWriter(t.TempDir(), "harvest")
	if err != nil {
		t.Fatal(err)
	}

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for g := 0; g < writers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("%d-%d", g, i)
				env, err := addi.New(addi.MetaData{BibliographicRecordID: id}, []byte(strings.Repeat(id, 50)))
				if err != nil {
					t.Error(err)
					return
				}
				if err := w.Write(env); err != nil {
					t.Error(err)
				}
			}
		}(g)
	}
	wg.Wait()

	handle, err := w.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	defer Cleanup(handle.Path)
	if handle.Records != writers*perWriter {
		t.Errorf("records = %d", handle.Records)
	}

	f, err := os.Open(handle.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	info, _ := f.Stat()
	if info.Size() != handle.Bytes {
		t.Errorf("size = %d, handle says %d", info.Size(), handle.Bytes)
	}

	r := addi.NewReader(f)
	seen := make(map[string]bool)
	for {
		env, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next after %d envelopes: %v", len(seen), err)
		}
		meta, err := env.Meta()
		if err != nil {
			t.Fatal(err)
		}
		if string(env.Content) != strings.Repeat(meta.BibliographicRecordID, 50) {
			t.Fatalf("content of %s corrupted", meta.BibliographicRecordID)
		}
		seen[meta.BibliographicRecordID] = true
	}
	if len(seen) != writers*perWriter {
		t.Errorf("read %d distinct envelopes", len(seen))
	}
}

func TestBatchWriter_WriteAfterClose(t *testing.T) {
	w, err := NewBatchWriter(t.TempDir(), "harvest")
	if err != nil {
		t.Fatal(err)
	}
	handle, err := w.Close()
	if err != nil {
		t.Fatal(err)
	}
	defer Cleanup(handle.Path)
	env, _ := addi.New(addi.MetaData{BibliographicRecordID: "1"}, nil)
	if err := w.Write(env); err == nil {
		t.Fatal("expected error writing to closed batch")
	}
	if handle.Records != 0 {
		t.Errorf("records = %d", handle.Records)
	}
}
