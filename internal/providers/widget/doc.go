// Package widget generates the chat widget script and places it in pages.
//
// The same script body serves three uses: Inject binds a client id and
// appends the script to a proxied document, Embeddable is served at
// /widget.js and reads its configuration from the loading <script> tag,
// and Loader produces JavaScript that a headless browser evaluates to add
// the widget before a capture.
//
// The script is standalone. It uses no module system and guards itself
// with a window flag so a second copy does nothing.
package widget
