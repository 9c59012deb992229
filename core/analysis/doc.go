// Package analysis derives read-only port insights from a committed
// schedule: arrival competition around a target ETA, berth occupancy,
// berth recommendations for a candidate vessel and schedule KPIs.
//
// Every function takes a *schedule.Schedule snapshot and never mutates it,
// so callers can run analyses concurrently with planning.
package analysis
