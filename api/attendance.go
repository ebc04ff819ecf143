package api

import (
	"net/http"

	"SRTrack/internal/attendance"
	"SRTrack/utils"
)

// HandleListAttendance returns the sessions of a date, newest first.
func (h *Handlers) HandleListAttendance(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	today := h.clock.DateOf(now)

	date := r.URL.Query().Get("date")
	if date == "" {
		date = today
	}
	if !utils.ValidDate(date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	var company attendance.Company
	if raw := r.URL.Query().Get("company"); raw != "" {
		c, err := attendance.ParseCompany(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown company")
			return
		}
		company = c
	}

	views, err := h.sessions.SessionsByDate(r.Context(), date, company)
	if err != nil {
		h.log.Error("Failed to list attendance", "date", date, "company", company, "err", err)
		writeError(w, storeErrorStatus(err), "Failed to load attendance")
		return
	}

	pastCutoff := h.clock.PastCutoffAt(now)
	resp := attendanceResponse{
		Date:    date,
		Company: string(company),
		Count:   len(views),
		Records: make([]attendanceRecord, 0, len(views)),
	}
	for _, v := range views {
		resp.Records = append(resp.Records, h.record(v, today, pastCutoff))
	}
	writeJSON(w, http.StatusOK, resp)
}

// record renders a session. An open session of today is reported overdue
// once the cutoff has passed, even before the sweep flags it.
func (h *Handlers) record(v attendance.SessionView, today string, pastCutoff bool) attendanceRecord {
	loc := h.clock.Location()
	rec := attendanceRecord{
		ID: v.Session.ID,
		Trainee: traineeView{
			Rank:                 v.Trainee.Rank,
			FullName:             v.Trainee.FullName,
			IdentificationNumber: v.Trainee.IdentificationNumber,
			Company:              string(v.Trainee.Company),
		},
		Date:    v.Session.Date,
		ClockIn: v.Session.ClockIn.In(loc).Format(clockLayout),
		Status:  string(v.Session.Status),
		Overdue: v.Session.Overdue,
	}
	if v.Session.ClockOut != nil {
		out := v.Session.ClockOut.In(loc).Format(clockLayout)
		rec.ClockOut = &out
	}
	if !rec.Overdue && v.Session.Open() && v.Session.Date == today && pastCutoff {
		rec.Overdue = true
	}
	return rec
}
