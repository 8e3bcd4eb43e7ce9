package handlers

import (
	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/sirupsen/logrus"
)

// logAuditError logs audit service errors without failing the request
func logAuditError(logger *logrus.Logger, operation string, err error) {
	if err != nil {
		logger.WithError(err).WithField("operation", operation).Warn("Audit write failed")
	}
}

// Helpers to log audit events from handlers. A nil audit service is a no-op.

func safeLogData(audit *services.AuditService, logger *logrus.Logger, action string, userID *uuid.UUID, details map[string]interface{}) {
	if audit == nil {
		return
	}
	logAuditError(logger, "LogData", audit.LogData(action, userID, details))
}

func safeLogSecurity(audit *services.AuditService, logger *logrus.Logger, action string, caller services.Caller, details map[string]interface{}) {
	if audit == nil {
		return
	}
	logAuditError(logger, "LogSecurity", audit.LogSecurity(action, caller.UserID, caller.IPAddress, caller.UserAgent, details))
}

func safeLogAuth(audit *services.AuditService, logger *logrus.Logger, action string, caller services.Caller, details map[string]interface{}) {
	if audit == nil {
		return
	}
	logAuditError(logger, "LogAuth", audit.LogAuth(action, caller.UserID, caller.IPAddress, caller.UserAgent, details))
}
