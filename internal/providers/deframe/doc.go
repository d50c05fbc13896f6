// Package deframe removes a page's defences against being framed.
//
// Apply runs three steps, each safe to repeat:
//
//  1. Drop <meta> equivalents of X-Frame-Options and Content-Security-Policy.
//  2. Replace inline scripts matching a frame-busting signature with a
//     placeholder comment.
//  3. Insert a shim at the start of <head> that makes top, parent and
//     frameElement report the current window.
//
// Signatures are an ordered table; the first match decides. Scripts that
// bust frames by other means are not caught.
package deframe
