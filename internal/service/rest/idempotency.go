package rest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

// idempotencyTTL — срок хранения ответа для повторов по ключу.
const idempotencyTTL = 24 * time.Hour

// withIdempotency обслуживает заголовок Idempotency-Key: повтор с тем же
// телом возвращает сохранённый ответ, повтор с другим телом отклоняется.
func withIdempotency(repo domain.IdempotencyRepository, logger *log.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if repo == nil || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		hash := requestHash(r.Method, r.URL.Path, body)

		record, err := repo.Get(key)
		switch {
		case err == nil:
			replayRecord(w, record, hash)
			return
		case !errors.Is(err, domain.ErrIdempotencyKeyNotFound):
			logger.WithError(err).WithField("idempotency_key", key).Warn("idempotency lookup failed, serving without replay")
			next.ServeHTTP(w, r)
			return
		}

		if _, err := repo.CreateProcessing(key, hash, time.Now().UTC().Add(idempotencyTTL)); err != nil {
			if errors.Is(err, domain.ErrIdempotencyHashMismatch) {
				writeDomainError(w, domain.ErrIdempotencyHashMismatch)
				return
			}
			if errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
				// Гонка двух одинаковых запросов: второй получает conflict.
				writeError(w, http.StatusConflict, "request with this idempotency key is already being processed")
				return
			}
			logger.WithError(err).WithField("idempotency_key", key).Warn("idempotency record create failed, serving without replay")
			next.ServeHTTP(w, r)
			return
		}

		recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		if recorder.status >= http.StatusInternalServerError {
			if err := repo.MarkFailed(key, recorder.body.Bytes(), recorder.status); err != nil {
				logger.WithError(err).WithField("idempotency_key", key).Warn("failed to mark idempotency record failed")
			}
			return
		}
		if err := repo.MarkDone(key, recorder.body.Bytes(), recorder.status); err != nil {
			logger.WithError(err).WithField("idempotency_key", key).Warn("failed to mark idempotency record done")
		}
	})
}

func replayRecord(w http.ResponseWriter, record domain.IdempotencyRecord, hash string) {
	if record.RequestHash != hash {
		writeDomainError(w, domain.ErrIdempotencyHashMismatch)
		return
	}

	if record.Status == domain.IdempotencyStatusProcessing {
		writeError(w, http.StatusConflict, "request with this idempotency key is already being processed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotency-Replayed", "true")
	w.WriteHeader(record.HTTPStatus)
	_, _ = w.Write(record.ResponseBody)
}

func requestHash(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte(":"))
	sum.Write([]byte(path))
	sum.Write([]byte(":"))
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

// responseRecorder пишет ответ клиенту и одновременно копит его для повтора.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
