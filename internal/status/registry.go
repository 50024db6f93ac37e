package status

import (
	"time"

	"hoodwatch/internal/models"
)

// Connection/error registry: the part of the aggregator that tracks
// persistent faults as opposed to transient per-poll errors. A section with
// a standing connection fault is Suspended and its poller stops issuing
// network calls until an explicit reconnect.

// connectionFaultLocked records (or refreshes) the section's single
// connection-kind record and flips it into Suspended.
func (a *Aggregator) connectionFaultLocked(id, msg string, at time.Time) Verdict {
	wasSuspended := a.conn[id] == models.ConnSuspended

	rec, ok := a.connRec[id]
	if !ok {
		rec = models.ErrorRecord{SectionID: id, Kind: models.ErrorKindConnection, FirstSeen: at}
	}
	rec.Message = msg
	rec.LastSeen = at
	a.connRec[id] = rec
	a.conn[id] = models.ConnSuspended
	a.streak[id] = 0

	if a.log != nil && !wasSuspended {
		a.log.Errorw("section_connection_lost", "section", id, "msg", msg)
	}
	return Verdict{Suspended: true, Lost: !wasSuspended}
}

// clearConnectionFaultLocked resets the timeout streak and, if a connection
// record was standing, clears it and resumes the section. Runs on every
// successful poll, so a record can only be cleared by a successful reconnect
// probe or a successful cycle.
func (a *Aggregator) clearConnectionFaultLocked(id string, at time.Time) Verdict {
	a.streak[id] = 0
	_, had := a.connRec[id]
	if !had {
		if a.conn[id] != models.ConnActive {
			a.conn[id] = models.ConnActive
		}
		return Verdict{}
	}
	delete(a.connRec, id)
	a.conn[id] = models.ConnActive
	if a.log != nil {
		a.log.Infow("section_reconnected", "section", id, "at", at)
	}
	return Verdict{Recovered: true}
}

// Suspended reports whether the section currently has a standing connection
// fault.
func (a *Aggregator) Suspended(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn[id] == models.ConnSuspended
}
