package api

import "SRTrack/internal/compliance"

type errorResponse struct {
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type complianceResponse struct {
	Success bool `json:"success"`
	compliance.Report
}

type traineeView struct {
	Rank                 string `json:"rank"`
	FullName             string `json:"full_name"`
	IdentificationNumber string `json:"identification_number"`
	Company              string `json:"company"`
}

type attendanceRecord struct {
	ID       string      `json:"id"`
	Trainee  traineeView `json:"trainee"`
	Date     string      `json:"date"`
	ClockIn  string      `json:"clock_in"`
	ClockOut *string     `json:"clock_out"`
	Status   string      `json:"status"`
	Overdue  bool        `json:"overdue"`
}

type attendanceResponse struct {
	Date    string             `json:"date"`
	Company string             `json:"company,omitempty"`
	Count   int                `json:"count"`
	Records []attendanceRecord `json:"records"`
}
