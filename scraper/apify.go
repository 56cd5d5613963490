package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"hotelwatch/config"
	"hotelwatch/models"
)

const apifyAPIBase = "https://api.apify.com/v2"

// ActorAdapter isolates actor-specific input and output shapes from
// the generic run/poll/fetch plumbing.
type ActorAdapter interface {
	ActorID() string
	BuildInput(task models.ScrapeTask) map[string]interface{}
	ParseItem(data json.RawMessage) ([]RoomOffer, error)
}

// ApifyClient talks to the Apify actor-run API. The base URL is a
// field so tests can point it at a local server.
type ApifyClient struct {
	baseURL     string
	token       string
	client      *http.Client
	pollTimeout time.Duration
	pollDelay   time.Duration
}

func NewApifyClient(cfg config.ApifyConfig, client *http.Client) *ApifyClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ApifyClient{
		baseURL:     apifyAPIBase,
		token:       cfg.Token,
		client:      client,
		pollTimeout: cfg.PollTimeout,
		pollDelay:   cfg.PollDelay,
	}
}

// StartRun submits an actor run and returns its run id.
func (c *ApifyClient) StartRun(ctx context.Context, actorID string, input map[string]interface{}) (string, error) {
	body, _ := json.Marshal(input)

	url := fmt.Sprintf("%s/acts/%s/runs?token=%s", c.baseURL, actorID, c.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("apify start run failed %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.ID, nil
}

// WaitForRun polls a run until it reaches a terminal status or the
// poll deadline passes, then returns its default dataset id.
func (c *ApifyClient) WaitForRun(ctx context.Context, runID string) (string, error) {
	url := fmt.Sprintf("%s/actor-runs/%s?token=%s", c.baseURL, runID, c.token)
	deadline := time.Now().Add(c.pollTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return "", err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			time.Sleep(c.pollDelay)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return "", fmt.Errorf("run poll failed %d: %s", resp.StatusCode, string(respBody))
		}

		var result struct {
			Data struct {
				Status           string `json:"status"`
				DefaultDatasetID string `json:"defaultDatasetId"`
			} `json:"data"`
		}
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("failed to decode run status: %w", err)
		}

		switch result.Data.Status {
		case "SUCCEEDED":
			return result.Data.DefaultDatasetID, nil
		case "FAILED", "ABORTED", "TIMED-OUT":
			return "", fmt.Errorf("run %s: %s", runID, result.Data.Status)
		}

		time.Sleep(c.pollDelay)
	}

	return "", fmt.Errorf("timeout waiting for run %s", runID)
}

// FetchDataset reads back the items a finished run produced.
func (c *ApifyClient) FetchDataset(ctx context.Context, datasetID string) ([]json.RawMessage, error) {
	url := fmt.Sprintf("%s/datasets/%s/items?token=%s&format=json", c.baseURL, datasetID, c.token)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dataset fetch failed %d: %s", resp.StatusCode, string(respBody))
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// FallbackExtractor prices dates through a remote scraping actor when
// the browser path is disabled or has failed. One remote job per day;
// the same pacing applies between day submissions as on the primary
// path, but not inside a single job.
type FallbackExtractor struct {
	client  *ApifyClient
	adapter ActorAdapter
	pacer   *Pacer
}

// ErrNoCredential signals a missing Apify token. Surfaced as a scan
// failure, never silently skipped.
var ErrNoCredential = fmt.Errorf("apify token not configured")

func NewFallbackExtractor(client *ApifyClient, adapter ActorAdapter, pacer *Pacer) (*FallbackExtractor, error) {
	if client.token == "" {
		return nil, ErrNoCredential
	}
	return &FallbackExtractor{client: client, adapter: adapter, pacer: pacer}, nil
}

// Extract prices a single hotel+date through the remote actor. A
// failed or empty job yields unavailable rows for every requested
// room type rather than an error.
func (f *FallbackExtractor) Extract(ctx context.Context, task models.ScrapeTask) ([]models.PriceRecord, error) {
	offers, err := f.runJob(ctx, task)
	if err != nil {
		log.Printf("Apify job failed for %s on %s: %v", task.HotelURL, task.CheckIn(), err)
		return UnavailableRecords(task, models.SourceApify), nil
	}
	return OffersToRecords(task, offers, models.SourceApify), nil
}

// ExtractRange prices a run of consecutive days, one remote job each,
// pacing between submissions.
func (f *FallbackExtractor) ExtractRange(ctx context.Context, task models.ScrapeTask, daysForward int) ([]models.PriceRecord, error) {
	var records []models.PriceRecord

	for offset := 0; offset < daysForward; offset++ {
		if err := f.pacer.Wait(ctx); err != nil {
			return records, err
		}

		day := task
		day.CheckInDate = task.CheckInDate.AddDate(0, 0, offset)
		day.CheckOutDate = day.CheckInDate.AddDate(0, 0, 1)

		recs, err := f.Extract(ctx, day)
		if err != nil {
			return records, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (f *FallbackExtractor) runJob(ctx context.Context, task models.ScrapeTask) ([]RoomOffer, error) {
	runID, err := f.client.StartRun(ctx, f.adapter.ActorID(), f.adapter.BuildInput(task))
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	datasetID, err := f.client.WaitForRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	items, err := f.client.FetchDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	// One job per hotel+date; anything past the first item is noise.
	return f.adapter.ParseItem(items[0])
}
