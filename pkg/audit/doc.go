// Package audit records security-relevant events: logins, registrations,
// password changes, invitation lifecycle, operator suspensions, role changes
// and quota rejections.
//
// # Loggers
//
// DBLogger writes to the audit_events table, StructuredLogger writes to the
// application log and MultiLogger fans out to several of them:
//
//	dbLogger, _ := audit.NewDBLogger(db)
//	logger := audit.NewMultiLogger(dbLogger, audit.NewStructuredLogger(appLogger))
//
// # Recording
//
// Handlers build events from the request and record them with Record, which
// never returns an error:
//
//	event := audit.FromRequest(r, audit.EventTypeUserSuspend, audit.EventStatusSuccess).
//		WithActor(identity.UserID, identity.TenantID).
//		WithResource(audit.ResourceTypeUser, strconv.FormatInt(id, 10))
//	audit.Record(ctx, h.audit, event)
//
// A failed write is logged at warn level and the request carries on.
package audit
