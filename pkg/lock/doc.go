/*
Package lock guards the LocalPaste database against concurrent openers.

Three pieces cooperate:

  - The owner lock: an exclusive flock on db.owner.lock held for the process
    lifetime, acquired before any table handle is created.
  - The tri-state probe: ProbeOwnerLock plus the platform ProcessProbe
    (pgrep on Unix, tasklist on Windows), merged per Running > Unknown >
    NotRunning. At open time Unknown is treated as unsafe; force-unlock
    aborts only on Running.
  - Force-unlock: preflight-all-or-nothing removal of the known legacy and
    store-internal lock files. The owner lock itself is never removed, and
    lock files outside the known set are never touched.

At open time a lock failure is classified through the probe: a live writer is
a fatal "already running", an Unknown probe is a fatal "do not force-unlock",
and a NotRunning probe yields an actionable stale-lock recovery message.
*/
package lock
