// Package viz renders runs in the terminal.
//
//   - [Progress]: Bubble Tea model tracking a running ensemble
//   - [RenderSummary]: lipgloss panel with the outcome counts of a run
//   - [OffsetHistogram] and [RadiusCurve]: asciigraph plots of stored runs
//
// Colours follow [CurrentTheme]; see [ThemeNames] for the built-in schemes.
package viz
