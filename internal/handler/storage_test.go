package handler_test

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/msomdec/habit-tracker/internal/handler"
	"golang.org/x/sync/errgroup"
)

func TestGetMonth_AbsentReturnsNullPayload(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	token := env.register(t, "a@x.com", "pw123").AccessToken

	resp := env.do(t, http.MethodGet, "/storage/2024/3", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(body["year"]) != "2024" || string(body["month"]) != "3" {
		t.Fatalf("unexpected key: %s/%s", body["year"], body["month"])
	}
	if string(body["payload"]) != "null" {
		t.Fatalf("expected null payload, got %s", body["payload"])
	}
	if _, ok := body["id"]; ok {
		t.Fatal("absent month must not carry an id")
	}

	// A plain read must not have created anything.
	resp = env.do(t, http.MethodGet, "/storage/2024", token, nil)
	if months := decode[handler.YearDTO](t, resp).Months; len(months) != 0 {
		t.Fatalf("expected no saved months, got %v", months)
	}
}

func TestPutThenGet(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	token := env.register(t, "a@x.com", "pw123").AccessToken

	payload := `{"habits":[{"id":7,"name":"Swim","color":"#123456"}],"data":{"7":{"2":true}},"chartType":"radar"}`
	resp := env.do(t, http.MethodPut, "/storage", token,
		fmt.Sprintf(`{"year":2024,"month":3,"payload":%s}`, payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d", resp.StatusCode)
	}
	saved := decode[handler.SnapshotDTO](t, resp)
	if saved.ID == 0 || saved.Year != 2024 || saved.Month != 3 {
		t.Fatalf("unexpected saved snapshot: %+v", saved)
	}

	resp = env.do(t, http.MethodGet, "/storage/2024/3", token, nil)
	got := decode[handler.SnapshotDTO](t, resp)
	if got.ID != saved.ID {
		t.Fatalf("expected id %d, got %d", saved.ID, got.ID)
	}
	if string(got.Payload) != payload {
		t.Fatalf("payload mismatch:\n got %s\nwant %s", got.Payload, payload)
	}
}

func TestPut_Validation(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	token := env.register(t, "a@x.com", "pw123").AccessToken

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"year":2024,`, http.StatusBadRequest},
		{"month out of range", `{"year":2024,"month":12,"payload":{}}`, http.StatusUnprocessableEntity},
		{"negative month", `{"year":2024,"month":-1,"payload":{}}`, http.StatusUnprocessableEntity},
		{"missing year and month", `{"payload":{}}`, http.StatusUnprocessableEntity},
		{"missing month", `{"year":2024,"payload":{"habits":[],"data":{}}}`, http.StatusUnprocessableEntity},
		{"null year", `{"year":null,"month":1,"payload":{}}`, http.StatusUnprocessableEntity},
		{"missing payload", `{"year":2024,"month":1}`, http.StatusUnprocessableEntity},
		{"array payload", `{"year":2024,"month":1,"payload":[]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPut, "/storage", token, tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	resp := env.do(t, http.MethodGet, "/storage/0", token, nil)
	if months := decode[handler.YearDTO](t, resp).Months; len(months) != 0 {
		t.Fatalf("rejected bodies must not be saved, got months %v", months)
	}
}

func TestStorage_RequiresToken(t *testing.T) {
	env := newTestEnv(t, handler.Options{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/storage/2024/3"},
		{http.MethodPut, "/storage"},
		{http.MethodGet, "/storage/2024"},
		{http.MethodPost, "/storage/2024/3/init"},
	} {
		resp := env.do(t, tc.method, tc.path, "not-a-token", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestStorage_ScopedToCaller(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	alice := env.register(t, "alice@x.com", "pw123").AccessToken
	bob := env.register(t, "bob@x.com", "pw123").AccessToken

	resp := env.do(t, http.MethodPut, "/storage", alice, `{"year":2020,"month":5,"payload":{"habits":[],"data":{}}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/storage/2020/5", bob, nil)
	got := decode[handler.SnapshotDTO](t, resp)
	if string(got.Payload) != "null" {
		t.Fatalf("bob sees alice's data: %s", got.Payload)
	}
}

func TestPut_ConcurrentWritesKeepOneRow(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	reg := env.register(t, "a@x.com", "pw123")

	payloads := []string{
		`{"habits":[{"id":1,"name":"A","color":"#a"}],"data":{}}`,
		`{"habits":[{"id":2,"name":"B","color":"#b"}],"data":{}}`,
	}

	var g errgroup.Group
	for _, p := range payloads {
		g.Go(func() error {
			body := fmt.Sprintf(`{"year":2024,"month":3,"payload":%s}`, p)
			req, err := http.NewRequest(http.MethodPut, env.srv.URL+"/storage", strings.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent PUT: %v", err)
	}

	var count int
	if err := env.db.SqlDB.QueryRow(
		`SELECT COUNT(*) FROM snapshots WHERE user_id = ? AND year = 2024 AND month = 3`, reg.User.ID,
	).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}

	resp := env.do(t, http.MethodGet, "/storage/2024/3", reg.AccessToken, nil)
	got := decode[handler.SnapshotDTO](t, resp)
	if !slices.Contains(payloads, string(got.Payload)) {
		t.Fatalf("final payload matches neither writer: %s", got.Payload)
	}
}

func TestInit_BootstrapsAndPreserves(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	token := env.register(t, "a@x.com", "pw123").AccessToken

	resp := env.do(t, http.MethodPost, "/storage/1999/11/init", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	created := decode[handler.SnapshotDTO](t, resp)
	if created.Year != 1999 || created.Month != 11 || created.ID == 0 {
		t.Fatalf("unexpected snapshot: %+v", created)
	}

	empty := `{"habits":[],"data":{}}`
	env.do(t, http.MethodPut, "/storage", token, fmt.Sprintf(`{"year":1999,"month":11,"payload":%s}`, empty))

	resp = env.do(t, http.MethodPost, "/storage/1999/11/init", token, nil)
	again := decode[handler.SnapshotDTO](t, resp)
	if string(again.Payload) != empty {
		t.Fatalf("init overwrote deliberate empty state: %s", again.Payload)
	}
}

func TestInit_BadPath(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	token := env.register(t, "a@x.com", "pw123").AccessToken

	if resp := env.do(t, http.MethodPost, "/storage/abc/1/init", token, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPost, "/storage/2024/12/init", token, nil); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestGetYear(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	token := env.register(t, "a@x.com", "pw123").AccessToken

	for _, m := range []int{9, 2} {
		env.do(t, http.MethodPut, "/storage", token, fmt.Sprintf(`{"year":2030,"month":%d,"payload":{}}`, m))
	}

	resp := env.do(t, http.MethodGet, "/storage/2030", token, nil)
	year := decode[handler.YearDTO](t, resp)
	if year.Year != 2030 || !slices.Equal(year.Months, []int{2, 9}) {
		t.Fatalf("unexpected year listing: %+v", year)
	}
}

func TestGetMonth_DatastarSignals(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	token := env.register(t, "a@x.com", "pw123").AccessToken

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/storage/2024/3", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Datastar-Request", "true")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected event stream, got %q", ct)
	}

	var sawSignals bool
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: signals") && strings.Contains(line, `"storage"`) {
			sawSignals = true
		}
	}
	if !sawSignals {
		t.Fatal("expected a signals patch carrying storage")
	}
}
