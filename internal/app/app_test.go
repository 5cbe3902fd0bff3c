package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/semmidev/arxivsync/internal/config"
	"github.com/semmidev/arxivsync/internal/domain"
	"github.com/semmidev/arxivsync/internal/infrastructure/logger"
	"github.com/semmidev/arxivsync/internal/infrastructure/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2501.00001v2</id>
    <published>2025-01-02T10:00:00Z</published>
    <title>Planning with
      Agents</title>
    <link href="%s/pdf/2501.00001v2" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func newArxivServer() *httptest.Server {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, feedTemplate, server.URL)
	})
	mux.HandleFunc("/pdf/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF-1.4 body")
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	server = httptest.NewServer(mux)
	return server
}

func testConfig(baseURL, dir string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "arxivsync-test", LogLevel: "error"},
		Store: config.StoreConfig{
			Type:      config.StoreTypeLocal,
			LocalPath: dir,
			KeyPrefix: "arxiv-papers",
		},
		Feed: config.FeedConfig{
			BaseURL:     baseURL + "/api/query",
			SearchQuery: "cat:cs.AI",
			MaxResults:  10,
			SortBy:      "submittedDate",
			SortOrder:   "descending",
			UserAgent:   "test",
			Timeout:     5 * time.Second,
		},
		Sync: config.SyncConfig{
			MaxPayloadBytes: 1024,
			DownloadTimeout: 5 * time.Second,
			Concurrency:     1,
		},
		Purge: config.PurgeConfig{PageSize: 1000, BatchSize: 1000},
	}
}

func TestApp(t *testing.T) {
	Convey("Given an app wired to a local store and a fake feed", t, func() {
		server := newArxivServer()
		defer server.Close()

		dir := t.TempDir()
		cfg := testConfig(server.URL, dir)
		ctx := context.Background()

		application, err := New(ctx, cfg)
		So(err, ShouldBeNil)
		defer application.Shutdown()

		Convey("When syncing twice", func() {
			first, err := application.RunSync(ctx)
			So(err, ShouldBeNil)
			second, err := application.RunSync(ctx)
			So(err, ShouldBeNil)

			Convey("It should upload once and skip the second time", func() {
				So(first.Uploaded, ShouldEqual, 1)
				So(second.Skipped, ShouldEqual, 1)

				data, err := os.ReadFile(filepath.Join(dir, "arxiv-papers", "2025", "01", "02", "2501.00001v2.pdf"))
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "%PDF-1.4 body")
			})
		})

		Convey("When listing", func() {
			var out bytes.Buffer
			n, err := application.RunList(ctx, &out)

			Convey("It should print the entry without storing anything", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(out.String(), ShouldContainSubstring, "1. Title: Planning with Agents")
				So(out.String(), ShouldContainSubstring, "ArXiv ID: 2501.00001v2")

				entries, _ := os.ReadDir(dir)
				So(entries, ShouldBeEmpty)
			})
		})

		Convey("When purging after a sync", func() {
			_, err := application.RunSync(ctx)
			So(err, ShouldBeNil)

			cfg.Purge.Prefix = "arxiv-papers/2025/"
			cfg.Purge.Pattern = `\.pdf$`
			report, err := application.RunPurge(ctx)

			Convey("It should delete the stored paper", func() {
				So(err, ShouldBeNil)
				So(report.Deleted, ShouldEqual, 1)
				So(report.Errors, ShouldBeEmpty)
			})
		})

		Convey("When the purge pattern is invalid", func() {
			cfg.Purge.Pattern = "("
			_, err := application.RunPurge(ctx)

			Convey("It should be rejected as a validation error", func() {
				So(errors.Is(err, domain.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the feed is unavailable", func() {
			downCfg := testConfig(server.URL, dir)
			downCfg.Feed.BaseURL = server.URL + "/down"
			down, err := New(ctx, downCfg)
			So(err, ShouldBeNil)
			defer down.Shutdown()

			_, err = down.RunSync(ctx)

			Convey("It should return a transport error", func() {
				So(errors.Is(err, domain.ErrTransport), ShouldBeTrue)
			})
		})

		Convey("When serving without any schedule", func() {
			cfg.Schedule = config.ScheduleConfig{}
			err := application.Serve(ctx)

			Convey("It should refuse to start", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "no schedules configured")
			})
		})

		Convey("When the sync schedule is malformed", func() {
			cfg.Schedule.Sync = "every day"
			err := application.Serve(ctx)

			Convey("It should fail to schedule", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to schedule sync")
			})
		})

		Convey("When serving until cancelled", func() {
			cfg.Schedule.Sync = "0 0 6 * * *"
			cfg.Metrics.Addr = "127.0.0.1:0"
			serveCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
			defer cancel()

			err := application.Serve(serveCtx)

			Convey("It should return cleanly with the status server bound", func() {
				So(err, ShouldBeNil)
				So(application.server, ShouldNotBeNil)
				So(application.server.Addr(), ShouldStartWith, "127.0.0.1:")
			})
		})
	})
}

func TestListingApp(t *testing.T) {
	Convey("Given an app wired for listing only", t, func() {
		server := newArxivServer()
		defer server.Close()

		cfg := testConfig(server.URL, "")
		cfg.Store = config.StoreConfig{Type: config.StoreTypeS3}
		application, err := NewListing(cfg)
		So(err, ShouldBeNil)
		defer application.Shutdown()

		Convey("It should list without any store settings", func() {
			var out bytes.Buffer
			n, err := application.RunList(context.Background(), &out)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("It should refuse to sync or purge", func() {
			_, err := application.RunSync(context.Background())
			So(errors.Is(err, errNoStore), ShouldBeTrue)
			_, err = application.RunPurge(context.Background())
			So(errors.Is(err, errNoStore), ShouldBeTrue)
		})
	})
}

func TestStatusServer(t *testing.T) {
	Convey("Given a running status server", t, func() {
		m, err := metrics.New()
		So(err, ShouldBeNil)
		m.RecordSync(domain.NewSyncReport([]domain.SyncOutcome{{Status: domain.StatusUploaded}}), time.Second, nil)

		server := NewStatusServer("127.0.0.1:0", m.Handler(), logger.NewNop())
		So(server.Start(), ShouldBeNil)
		defer server.Shutdown(context.Background())

		get := func(path string) (int, string) {
			resp, err := http.Get("http://" + server.Addr() + path)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return resp.StatusCode, string(body)
		}

		Convey("The health endpoint should answer ok", func() {
			status, body := get("/healthz")
			So(status, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(body), ShouldEqual, "ok")
		})

		Convey("The metrics endpoint should expose the run counters", func() {
			status, body := get("/metrics")
			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, `arxivsync_sync_records_total{reason="",status="uploaded"} 1`)
		})

		Convey("Unknown paths should 404", func() {
			status, _ := get("/nope")
			So(status, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestSummaries(t *testing.T) {
	Convey("Given run reports", t, func() {
		Convey("A sync summary lists failures", func() {
			report := domain.NewSyncReport([]domain.SyncOutcome{
				{Identifier: "a", Status: domain.StatusUploaded},
				{Identifier: "b", Status: domain.StatusFailed, Reason: domain.ReasonDownloadError, Err: errors.New("503")},
			})
			msg := syncSummary(report, nil)
			So(msg, ShouldContainSubstring, "1 uploaded, 0 already stored, 1 failed")
			So(msg, ShouldContainSubstring, "b: failed(download-error): 503")
		})

		Convey("A failed sync reports the error only", func() {
			msg := syncSummary(domain.SyncReport{}, errors.New("feed down"))
			So(msg, ShouldContainSubstring, "sync failed: feed down")
		})

		Convey("A purge summary caps the listed errors", func() {
			var keyErrors []domain.KeyError
			for i := 0; i < 12; i++ {
				keyErrors = append(keyErrors, domain.KeyError{Key: fmt.Sprintf("k%d", i), Reason: "AccessDenied"})
			}
			msg := purgeSummary(domain.DeletionFilter{Prefix: "p/"}, domain.PurgeReport{Scanned: 12, Errors: keyErrors}, nil)
			So(msg, ShouldContainSubstring, `prefix="p/"`)
			So(msg, ShouldContainSubstring, "Deleted 0 of 12 object(s), 12 error(s)")
			So(msg, ShouldContainSubstring, "k9: AccessDenied")
			So(msg, ShouldNotContainSubstring, "k10: AccessDenied")
			So(msg, ShouldContainSubstring, "and 2 more")
		})

		Convey("A dry run summary reports matches", func() {
			msg := purgeSummary(domain.DeletionFilter{}, domain.PurgeReport{DryRun: true, Matched: 3, Scanned: 5}, nil)
			So(msg, ShouldContainSubstring, "Would delete 3 of 5 object(s)")
		})
	})
}
