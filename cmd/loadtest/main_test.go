package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func withFlagArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"loadtest"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		input   string
		want    loadMode
		wantErr bool
	}{
		{input: "checkout", want: modeCheckout},
		{input: " checkout-complete ", want: modeCheckoutComplete},
		{input: "checkout-cancel", want: modeCheckoutCancel},
		{input: "create", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseMode(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ожидали ошибку для %q", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseMode(%q) вернул ошибку: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("parseMode(%q) = %s, ожидали %s", tc.input, got, tc.want)
		}
	}
}

func TestParseConfig(t *testing.T) {
	withFlagArgs(t, []string{
		"-addr=http://localhost:8080/",
		"-total=10",
		"-concurrency=2",
		"-mode=checkout-complete",
		"-cancel-rate=25",
		"-product-id=p-1",
		"-customer-id=c-1",
		"-qty=3",
		"-price-minor=999",
	}, func() {
		cfg, err := parseConfig()
		if err != nil {
			t.Fatalf("parseConfig вернул ошибку: %v", err)
		}
		if cfg.addr != "http://localhost:8080" {
			t.Fatalf("addr должен обрезать хвостовой слэш: %s", cfg.addr)
		}
		if cfg.mode != modeCheckoutComplete || cfg.cancelRate != 25 {
			t.Fatalf("неожиданный режим: mode=%s cancelRate=%d", cfg.mode, cfg.cancelRate)
		}
		if cfg.qty != 3 || cfg.priceMinor != 999 {
			t.Fatalf("неожиданные параметры позиции: qty=%d price=%d", cfg.qty, cfg.priceMinor)
		}
	})

	invalid := [][]string{
		{"-product-id=p-1"},                         // нет customer-id
		{"-customer-id=c-1"},                        // нет product-id
		{"-product-id=p-1", "-customer-id=c-1", "-total=0"},
		{"-product-id=p-1", "-customer-id=c-1", "-concurrency=0"},
		{"-product-id=p-1", "-customer-id=c-1", "-qty=0"},
		{"-product-id=p-1", "-customer-id=c-1", "-cancel-rate=101"},
		{"-product-id=p-1", "-customer-id=c-1", "-timeout=0s"},
		{"-product-id=p-1", "-customer-id=c-1", "-mode=bad"},
	}
	for _, args := range invalid {
		withFlagArgs(t, args, func() {
			if _, err := parseConfig(); err == nil {
				t.Fatalf("ожидали ошибку валидации для %v", args)
			}
		})
	}
}

func TestDispatchJobs(t *testing.T) {
	jobs := make(chan int, 16)
	dispatchJobs(jobs, config{total: 5})

	var got []int
	for id := range jobs {
		got = append(got, id)
	}
	if len(got) != 5 {
		t.Fatalf("ожидали 5 заданий, получили %d", len(got))
	}

	// duration-режим с явным total ограничивается total.
	jobs = make(chan int, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})
	}()
	var count int
	for range jobs {
		count++
	}
	<-done
	if count != 3 {
		t.Fatalf("ожидали 3 задания, получили %d", count)
	}
}

func TestCollectorAndReport(t *testing.T) {
	col := newCollector()
	col.record("scenario", 10*time.Millisecond, "200", true)
	col.record("scenario", 20*time.Millisecond, "409", false)
	col.record("Checkout", 5*time.Millisecond, "201", true)
	col.record("Checkout", 7*time.Millisecond, "409", false)

	result := col.buildReport(time.Now(), time.Second)

	if result.TotalScenarios != 2 || result.SuccessScenarios != 1 || result.FailedScenarios != 1 {
		t.Fatalf("неожиданные сценарии: %+v", result)
	}
	if result.ErrorRate != 0.5 {
		t.Fatalf("неожиданный error rate: %f", result.ErrorRate)
	}
	if result.RPS != 2 {
		t.Fatalf("неожиданный RPS: %f", result.RPS)
	}

	checkoutStats, ok := result.Methods["Checkout"]
	if !ok {
		t.Fatal("нет статистики по Checkout")
	}
	if checkoutStats.Codes["201"] != 1 || checkoutStats.Codes["409"] != 1 {
		t.Fatalf("неожиданные коды: %+v", checkoutStats.Codes)
	}
}

func TestUtilityFunctions(t *testing.T) {
	if shouldCancelScenario(5, 0) {
		t.Fatal("cancel-rate=0 не должен отменять")
	}
	if !shouldCancelScenario(5, 100) {
		t.Fatal("cancel-rate=100 должен отменять всегда")
	}
	if !shouldCancelScenario(10, 25) || shouldCancelScenario(30, 25) {
		t.Fatal("cancel-rate=25 должен отменять индексы 0..24 каждой сотни")
	}

	if got := percentile([]float64{1, 2, 3, 4}, 50); got != 2.5 {
		t.Fatalf("неожиданный p50: %f", got)
	}
	if got := percentile([]float64{7}, 99); got != 7 {
		t.Fatalf("неожиданный p99 одного значения: %f", got)
	}

	summary := buildLatencySummary([]float64{3, 1, 2})
	if summary.Min != 1 || summary.Max != 3 || summary.Avg != 2 {
		t.Fatalf("неожиданная сводка: %+v", summary)
	}

	if ratio(1, 0) != 0 {
		t.Fatal("ratio при нулевом total должен быть 0")
	}
}

func TestWriteJSONReport(t *testing.T) {
	if err := writeJSONReport(".", report{}); err == nil {
		t.Fatal("ожидали ошибку для каталога")
	}
	if err := writeJSONReport(filepath.Join("..", "escape.json"), report{}); err == nil {
		t.Fatal("ожидали ошибку для пути вне рабочего каталога")
	}

	path := filepath.Join(t.TempDir(), "report.json")
	// t.TempDir даёт абсолютный путь; переходим в него, чтобы пройти проверку.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(filepath.Dir(path)); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(wd) }()

	if err := writeJSONReport("report.json", report{TotalScenarios: 3}); err != nil {
		t.Fatalf("writeJSONReport вернул ошибку: %v", err)
	}

	raw, err := os.ReadFile("report.json")
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded report
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if decoded.TotalScenarios != 3 {
		t.Fatalf("неожиданный отчёт: %+v", decoded)
	}
}

// scenarioServer имитирует HTTP API: checkout, статус и отмена.
type scenarioServer struct {
	mu        sync.Mutex
	checkouts int
	statuses  []string
	cancels   int
	keys      []string

	failCheckout bool
}

func (s *scenarioServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.checkouts++
		s.keys = append(s.keys, r.Header.Get("Idempotency-Key"))
		fail := s.failCheckout
		s.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "insufficient stock"})
			return
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "order-1", "status": "pending"})
	})
	mux.HandleFunc("POST /api/orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		s.mu.Lock()
		s.statuses = append(s.statuses, payload.Status)
		s.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]string{"id": r.PathValue("id"), "status": payload.Status})
	})
	mux.HandleFunc("POST /api/orders/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.cancels++
		s.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]string{"id": r.PathValue("id"), "status": "cancelled"})
	})
	return mux
}

func baseConfig(addr string) config {
	return config{
		addr:        addr,
		productID:   "p-1",
		customerID:  "c-1",
		qty:         1,
		timeout:     2 * time.Second,
		concurrency: 1,
		total:       1,
	}
}

func TestRunScenario_Checkout(t *testing.T) {
	backend := &scenarioServer{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	cfg.mode = modeCheckout

	col := newCollector()
	if err := runScenario(srv.Client(), cfg, 0, "run-1", col); err != nil {
		t.Fatalf("runScenario вернул ошибку: %v", err)
	}

	if backend.checkouts != 1 || backend.cancels != 0 || len(backend.statuses) != 0 {
		t.Fatalf("неожиданные вызовы: %+v", backend)
	}
	if len(backend.keys) != 1 || !strings.HasPrefix(backend.keys[0], "lt-checkout-run-1-") {
		t.Fatalf("idempotency key не передан: %+v", backend.keys)
	}
}

func TestRunScenario_CompleteAndCancel(t *testing.T) {
	backend := &scenarioServer{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	cfg.mode = modeCheckoutComplete

	col := newCollector()
	if err := runScenario(srv.Client(), cfg, 0, "run-2", col); err != nil {
		t.Fatalf("runScenario вернул ошибку: %v", err)
	}
	if len(backend.statuses) != 1 || backend.statuses[0] != "completed" {
		t.Fatalf("ожидали перевод в completed: %+v", backend.statuses)
	}

	cfg.mode = modeCheckoutCancel
	if err := runScenario(srv.Client(), cfg, 1, "run-2", col); err != nil {
		t.Fatalf("runScenario вернул ошибку: %v", err)
	}
	if backend.cancels != 1 {
		t.Fatalf("ожидали одну отмену, получили %d", backend.cancels)
	}
}

func TestRunScenario_CheckoutFailureRecorded(t *testing.T) {
	backend := &scenarioServer{failCheckout: true}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	cfg.mode = modeCheckout

	col := newCollector()
	if err := runScenario(srv.Client(), cfg, 0, "run-3", col); err == nil {
		t.Fatal("ожидали ошибку сценария")
	}

	result := col.buildReport(time.Now(), time.Second)
	if result.FailedScenarios != 1 {
		t.Fatalf("сбой не учтён: %+v", result)
	}
	checkoutStats := result.Methods["Checkout"]
	if checkoutStats.Codes["409"] != 1 {
		t.Fatalf("код конфликта не учтён: %+v", checkoutStats.Codes)
	}
}

func TestPrintReport(t *testing.T) {
	// Достаточно того, что печать не паникует на заполненном отчёте.
	col := newCollector()
	col.record("scenario", time.Millisecond, "200", true)
	col.record("Checkout", time.Millisecond, "201", true)
	result := col.buildReport(time.Now(), time.Second)

	printReport(result, config{mode: modeCheckout, total: 1})
	printReport(result, config{mode: modeCheckout, duration: time.Second})
	printReport(result, config{mode: modeCheckout, duration: time.Second, total: 1, totalSet: true})
}
