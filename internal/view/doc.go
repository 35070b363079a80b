// Package view holds the server-rendered HTML served next to the JSON API.
// Components are written in .templ files; run templ generate after editing.
package view
