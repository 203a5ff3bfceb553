// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// Theme defines the color palette for greenlight's terminal output.
// All colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
//
// The semantic fields map run, job, and step outcomes to colors; the
// chrome fields cover text, headers, and help lines. The run view and
// the plain console printer share one theme so a run looks the same
// whether or not the TUI is active.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Outcome colors.
	StatusRunning   lipgloss.Color
	StatusSuccess   lipgloss.Color
	StatusFailure   lipgloss.Color
	StatusCancelled lipgloss.Color
	StatusSkipped   lipgloss.Color
	StatusAllowed   lipgloss.Color // Failures marked continue-on-error.

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Search and filter match highlighting.
	SearchHighlightBackground lipgloss.Color
}

// ConclusionColor returns the color for a run or job conclusion.
// Unknown values return NormalText.
func (theme Theme) ConclusionColor(conclusion workflow.Conclusion) lipgloss.Color {
	switch conclusion {
	case workflow.ConclusionSuccess:
		return theme.StatusSuccess
	case workflow.ConclusionFailure:
		return theme.StatusFailure
	case workflow.ConclusionCancelled:
		return theme.StatusCancelled
	case workflow.ConclusionSkipped:
		return theme.StatusSkipped
	default:
		return theme.NormalText
	}
}

// StepColor returns the color for a step status. Allowed failures get
// their own color so they read as warnings, not errors.
func (theme Theme) StepColor(status workflow.StepStatus) lipgloss.Color {
	switch status {
	case workflow.StepOK:
		return theme.StatusSuccess
	case workflow.StepFailed:
		return theme.StatusFailure
	case workflow.StepFailedAllowed:
		return theme.StatusAllowed
	case workflow.StepSkipped:
		return theme.StatusSkipped
	case workflow.StepCancelled:
		return theme.StatusCancelled
	default:
		return theme.NormalText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed
// for 256-color terminals with a dark background (the common case for
// development environments and tmux sessions).
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	StatusRunning:   lipgloss.Color("220"), // yellow/amber
	StatusSuccess:   lipgloss.Color("114"), // green
	StatusFailure:   lipgloss.Color("196"), // red
	StatusCancelled: lipgloss.Color("208"), // orange
	StatusSkipped:   lipgloss.Color("245"), // gray
	StatusAllowed:   lipgloss.Color("178"), // muted amber

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	SearchHighlightBackground: lipgloss.Color("58"), // dark amber
}
