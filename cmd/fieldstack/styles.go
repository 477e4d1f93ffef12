package main

import "github.com/charmbracelet/lipgloss"

const (
	colorPrimary = lipgloss.Color("#FF6B6B")
	colorMuted   = lipgloss.Color("#888888")
	colorSuccess = lipgloss.Color("#4CAF50")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#FFB347")
)

var (
	// TitleStyle is for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	// MutedStyle is for paths and secondary details.
	MutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	WarningStyle = lipgloss.NewStyle().Foreground(colorWarning)
)
