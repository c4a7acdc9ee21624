package httpapi

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"compscan-engine/internal/assemble"
	"compscan-engine/internal/domain"
	"compscan-engine/internal/events"
	"compscan-engine/internal/extract"
	"compscan-engine/internal/store"
)

type RecordsHandler struct {
	DB  *sql.DB
	Hub *events.Hub
}

func (h RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	rows, err := store.ListRecords(r.Context(), h.DB, store.ListRecordsOpts{
		Sort:         q.Get("sort"),
		Order:        q.Get("order"),
		Window:       q.Get("window"),
		Limit:        limit,
		IncludeStale: q.Get("stale") == "1",
	})
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if rows == nil {
		rows = []store.Row{}
	}
	writeJSON(w, rows)
}

// ExportCSV is the columnar read path for downstream modeling and
// visualization: columns id,salary,role,location,experience, every
// column nullable except id.
func (h RecordsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := store.ListRecords(r.Context(), h.DB, store.ListRecordsOpts{
		Sort: "id", Window: "all",
	})
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="records.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "salary", "role", "location", "experience"})

	for _, row := range rows {
		rec := []string{strconv.FormatInt(row.ID, 10), "", "", "", ""}
		if row.Salary != nil {
			rec[1] = strconv.FormatFloat(*row.Salary, 'f', -1, 64)
		}
		if row.Role != nil {
			rec[2] = *row.Role
		}
		if row.Location != nil {
			rec[3] = *row.Location
		}
		switch {
		case row.ExperienceYears != nil:
			rec[4] = strconv.FormatFloat(*row.ExperienceYears, 'f', -1, 64)
		case row.ExperienceBand != nil:
			rec[4] = *row.ExperienceBand
		}
		_ = cw.Write(rec)
	}
	cw.Flush()
}

func (h RecordsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := recordIDFromPath(r.URL.Path, "")
	if !ok {
		http.Error(w, "invalid id", 400)
		return
	}

	row, err := store.GetRecord(r.Context(), h.DB, id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("record %d not found", id))
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, row)
}

type supersedeRequest struct {
	Text string `json:"text"` // corrected reply text; re-extracted server-side
}

// SupersedeByPath appends a correction for /records/{id}/supersede.
// The prior row is marked stale, never edited: the table stays
// append-only.
func (h RecordsHandler) SupersedeByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := recordIDFromPath(r.URL.Path, "/supersede")
	if !ok {
		http.Error(w, "invalid id", 400)
		return
	}

	prior, err := store.GetRecord(r.Context(), h.DB, id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("record %d not found", id))
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	var req supersedeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), 400)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", 400)
		return
	}

	ex := extract.New(extract.Options{})
	reply := domain.RawReply{Index: prior.ReplyIndex, Text: req.Text}
	fields, err := ex.Extract(reply)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	rec, ok := assemble.Assemble(reply.Index, reply.Text, fields)
	if !ok {
		http.Error(w, "no fields extractable from corrected text", 422)
		return
	}
	rec.BatchID = prior.BatchID

	newID, err := store.Supersede(r.Context(), h.DB, id, rec)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	reqID := RequestIDFrom(r.Context())
	h.Hub.Publish(events.MakeEvent(reqID, "record_superseded", 1, map[string]any{"id": newID, "supersedes": id}))
	writeJSON(w, map[string]any{"ok": true, "id": newID, "supersedes": id})
}

func recordIDFromPath(path, suffix string) (int64, bool) {
	s := strings.TrimPrefix(path, "/records/")
	if suffix != "" {
		if !strings.HasSuffix(s, suffix) {
			return 0, false
		}
		s = strings.TrimSuffix(s, suffix)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
