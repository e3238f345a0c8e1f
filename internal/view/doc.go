// Package view renders board reports as the HTML velocity digest sent by
// email. The template is embedded from templates/velocity.html.
package view
