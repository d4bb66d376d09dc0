package approvalhttp

import (
	"encoding/json"
	"net/http"
	"strings"

	"dwagent/internal/quorum"
	"dwagent/internal/repo"
)

type decisionRequest struct {
	Decision string `json:"decision"` // "APPROVE" or "REJECT"
}

type decisionResponse struct {
	Status    string `json:"status"`
	Approvals int64  `json:"approvals"`
	Rejected  int64  `json:"rejected"`
	Promoted  bool   `json:"promoted"`
}

// handleDecision records the session-authenticated signer's decision and
// promotes the command if it now crosses quorum. A duplicate decision
// from the same signer is idempotent, guaranteed by quorum.Submit.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	docID, cmdID := routeDocAndCmd(r)
	signer, ok := signerFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing authenticated signer")
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	decision := strings.ToUpper(strings.TrimSpace(req.Decision))
	if decision != repo.DecisionApprove && decision != repo.DecisionReject {
		writeJSONError(w, http.StatusBadRequest, "decision must be APPROVE or REJECT")
		return
	}

	outcome, err := quorum.Submit(s.cfg.Repo, docID, cmdID, signer, decision, s.now().UnixMilli())
	if err != nil {
		s.logger().Error("approvalhttp: decision failed", "doc_id", docID, "cmd_id", cmdID, "signer", signer, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "could not record decision")
		return
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ApprovalsTotal.WithLabelValues(docID, decision).Inc()
		if outcome.Promoted {
			s.cfg.Metrics.PromotionsTotal.WithLabelValues(docID, outcome.Status).Inc()
		}
	}

	writeJSON(w, http.StatusOK, decisionResponse{
		Status:    outcome.Status,
		Approvals: outcome.Approvals,
		Rejected:  outcome.Rejected,
		Promoted:  outcome.Promoted,
	})
}
