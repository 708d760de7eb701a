package stream

import "time"

// heartbeatLoop runs for one Open epoch. Two timers: a ping ticker that
// keeps a probe in flight, and a coarser staleness ticker that declares the
// connection dead when silence and an unanswered ping coincide. The loop
// exits when its epoch ends or the connection is declared dead.
func (c *Controller) heartbeatLoop(gen uint64, tr Transport, stop <-chan struct{}) {
	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()
	stale := time.NewTicker(c.cfg.StaleCheckInterval)
	defer stale.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ping.C:
			c.sendPing(gen, tr, false)
		case <-stale.C:
			if !c.checkStale(gen, tr) {
				return
			}
		}
	}
}

// sendPing sends a heartbeat ping unless one is already outstanding.
// Ping/pong pairing is by send order, so a second ping before the first
// pong would corrupt the RTT measurement.
func (c *Controller) sendPing(gen uint64, tr Transport, outOfCycle bool) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateOpen || c.hb.pingOutstanding {
		c.mu.Unlock()
		return
	}

	now := time.Now()
	cmd := Command{
		Action:    ActionPing,
		Timestamp: now.UnixMilli(),
		ClientID:  c.clientID,
	}
	if err := c.sendLocked(tr, cmd); err != nil {
		c.mu.Unlock()
		c.logger.Debug("failed to send ping", "error", err)
		return
	}
	c.hb.lastPingSentAt = now
	c.hb.pingOutstanding = true
	c.mu.Unlock()

	if outOfCycle {
		c.logger.Debug("out-of-cycle ping after silence")
	}
}

// checkStale evaluates the silence window. Returns false when the
// connection was declared dead and the reconnect path has been entered.
func (c *Controller) checkStale(gen uint64, tr Transport) bool {
	c.mu.Lock()
	if gen != c.gen || c.state != StateOpen {
		c.mu.Unlock()
		return false
	}

	now := time.Now()
	silence := now.Sub(c.hb.lastAnyMessageAt)
	if silence <= c.cfg.SilenceThreshold {
		c.mu.Unlock()
		return true
	}

	if c.hb.pingOutstanding && now.Sub(c.hb.lastPingSentAt) > c.cfg.PongTimeout {
		c.logger.Warn("connection stale, forcing reconnect",
			"silence", silence,
			"ping_age", now.Sub(c.hb.lastPingSentAt),
		)
		tr.Close(closeCodeStale, "heartbeat timeout")
		events := c.transportDownLocked(ErrStaleConnection)
		c.mu.Unlock()
		c.emitAll(events)
		return false
	}
	c.mu.Unlock()

	// Silence but no probe in flight: ping immediately instead of
	// killing the connection.
	c.sendPing(gen, tr, true)
	return true
}
