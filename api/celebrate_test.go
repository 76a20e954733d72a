package api_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/xraph/vercel/celebrate"
)

func TestCelebrate_StreamsBursts(t *testing.T) {
	f := testServer(t)
	f.handler.WithCelebrateOptions(
		celebrate.WithDuration(100*time.Millisecond),
		celebrate.WithInterval(10*time.Millisecond),
	)

	resp := doJSON(t, "GET", f.srv.URL+"/celebrate", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var (
		bursts []celebrate.Burst
		events []string
	)
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: ") && events[len(events)-1] == "burst":
			var b celebrate.Burst
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &b); err != nil {
				t.Fatalf("decode burst: %v", err)
			}
			bursts = append(bursts, b)
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}

	if len(events) == 0 || events[len(events)-1] != "done" {
		t.Fatalf("stream should end with a done event, got %v", events)
	}
	if len(bursts) == 0 || len(bursts)%2 != 0 {
		t.Fatalf("expected bursts in pairs, got %d", len(bursts))
	}
	for _, b := range bursts {
		if b.Spread != 360 || len(b.Colors) != len(celebrate.DefaultColors) {
			t.Fatalf("unexpected burst %+v", b)
		}
		if b.ParticleCount < 0 || b.ParticleCount > 60 {
			t.Fatalf("particle count out of range: %d", b.ParticleCount)
		}
	}
}
