package worker

import (
	"github.com/tracklane/ticket-tracker/internal/service"
)

// StartAuditWorker registers audit handlers. A nil service leaves auditing off.
func StartAuditWorker(auditService *service.AuditService) {
	if auditService == nil {
		return
	}
	auditService.RegisterHandlers()
}
