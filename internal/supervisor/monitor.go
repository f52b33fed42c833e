package supervisor

import "time"

func (sv *Supervisor) monitorLoop() {
	defer close(sv.monitorDone)
	ticker := time.NewTicker(sv.cfg.MonitorPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-sv.monitorStop:
			return
		case <-ticker.C:
			sv.runMonitorOnce(time.Now())
		}
	}
}

// runMonitorOnce is one pass of the monitor loop, exported internally
// so tests can drive it deterministically instead of racing a real
// ticker.
func (sv *Supervisor) runMonitorOnce(now time.Time) {
	if sv.postSwitchCleanupPending.Load() {
		sv.cleanupFailedSlot(now)
	}

	active := sv.activeSlotIndex.Load()
	for i := 0; i < 2; i++ {
		s := sv.slots[i]
		failed := sv.slotFailed(s, now)
		if !failed {
			continue
		}
		if sv.dedup(i, now) {
			continue
		}
		if int32(i) == active {
			sv.maybeFailover(i, now)
		} else {
			sv.log.Warn("standby slot failed, respawning", "slot", i)
			sv.respawnSlot(s)
		}
	}

	sv.updateStandbyReady()
}

// slotFailed reports process exit or heartbeat stall, respecting the
// startup grace period — process-exit detection stays active even
// during grace; only the heartbeat-stall check is suspended.
func (sv *Supervisor) slotFailed(s *slot, now time.Time) bool {
	if s.proc != nil && s.proc.Exited() {
		return true
	}
	if now.Sub(s.spawnTime) < sv.cfg.StartupGracePeriod {
		return false
	}
	hb := s.heartbeat.Load()
	if hb != s.lastHeartbeat {
		s.lastHeartbeat = hb
		s.lastHeartbeatAt = now
		return false
	}
	return now.Sub(s.lastHeartbeatAt) >= sv.cfg.HeartbeatTimeout
}

func (sv *Supervisor) dedup(i int, now time.Time) bool {
	if now.Sub(sv.lastFailureAt[i]) < sv.cfg.DedupWindow {
		return true
	}
	sv.lastFailureAt[i] = now
	return false
}

// maybeFailover executes the running -> failover_pending transition:
// arm the switch for the next audio callback, provided the standby is
// ready to take over.
func (sv *Supervisor) maybeFailover(failedIndex int, now time.Time) {
	standbyIndex := 1 - failedIndex
	if !sv.slots[standbyIndex].standbyReady {
		sv.log.Error("active slot failed but standby not ready, staying degraded", "slot", failedIndex)
		return
	}
	sv.log.Warn("active slot failed, arming failover", "failed_slot", failedIndex, "standby_slot", standbyIndex)
	sv.failedSlotIndex.Store(int32(failedIndex))
	sv.targetSlotIndex.Store(int32(standbyIndex))
	sv.pendingSwitch.Store(true)
	sv.state.Store(int32(StateFailoverPending))
	sv.stats.FailoverCount.Inc()
	sv.stats.LastFailoverNS.Store(now.UnixNano())
}

// cleanupFailedSlot implements the post_failover_cleanup -> degraded
// transition: terminate the failed worker, clear its readiness, and
// respawn it in the same slot.
func (sv *Supervisor) cleanupFailedSlot(now time.Time) {
	failedIndex := int(sv.failedSlotIndex.Load())
	s := sv.slots[failedIndex]
	s.shutdown.Set()
	if s.proc != nil {
		s.proc.Stop(sv.cfg.StopGrace)
	}
	sv.respawnSlot(s)
	sv.postSwitchCleanupPending.Store(false)
	sv.state.Store(int32(StateDegraded))
}

func (sv *Supervisor) respawnSlot(s *slot) {
	s.audio.Reset()
	s.cmd.Reset()
	if err := sv.spawnSlot(s); err != nil {
		sv.log.Error("respawn failed", "slot", s.index, "err", err)
	}
}

// updateStandbyReady maintains the readiness flag — true once the
// standby Ring's head has advanced past tail — and performs the
// degraded -> running transition once the newly-spawned standby has
// published its first buffer.
func (sv *Supervisor) updateStandbyReady() {
	active := int(sv.activeSlotIndex.Load())
	standby := sv.slots[1-active]
	standby.standbyReady = standby.audio.HasPublished()

	if State(sv.state.Load()) == StateDegraded && standby.standbyReady {
		sv.state.Store(int32(StateRunning))
	}
}
