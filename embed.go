package studybuddy

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the web client. These templates
// are organized in a directory structure that separates layouts, pages, and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets (stylesheet and the script that posts messages and
// listens for replies) required by the web client.
//
//go:embed static/*
var StaticFS embed.FS
