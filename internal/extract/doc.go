// Package extract turns harvested HTML pages into text documents.
//
// Boilerplate elements (scripts, styles, headers, footers, navigation and
// asides) are dropped with goquery. The remaining text is split into
// paragraphs, one per outermost block element, or further into sentences.
// Optionally go-readability first isolates the main article of the page.
package extract
