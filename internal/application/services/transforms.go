package services

import (
	"strings"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
)

// RedactProtectedContent removes the body and excerpt of password-protected
// entities.
func RedactProtectedContent(formatted content.Formatted) content.Formatted {
	base := formatted.Base()
	if !base.Protected {
		return formatted
	}
	base.Excerpt = ""
	if base.Content != nil {
		base.Content = []content.Block{}
	}
	return formatted
}

// RewriteWordPressPaths turns absolute links to the WordPress origin inside
// block markup into site-relative links, so they route through the frontend.
func RewriteWordPressPaths(wordpressURL string) content.ContentTransform {
	origin := strings.TrimRight(wordpressURL, "/")
	if origin == "" {
		return func(formatted content.Formatted) content.Formatted { return formatted }
	}
	replacer := strings.NewReplacer(
		`href="`+origin+`/`, `href="/`,
		`href='`+origin+`/`, `href='/`,
		`href="`+origin+`"`, `href="/"`,
	)

	return func(formatted content.Formatted) content.Formatted {
		base := formatted.Base()
		rewriteBlocks(base.Content, replacer)
		if base.Template != nil {
			rewriteBlocks(base.Template.BeforeContent, replacer)
			rewriteBlocks(base.Template.AfterContent, replacer)
			rewriteBlocks(base.Template.SidebarContent, replacer)
		}
		return formatted
	}
}

func rewriteBlocks(blocks []content.Block, replacer *strings.Replacer) {
	for i := range blocks {
		block := &blocks[i]
		block.InnerHTML = replacer.Replace(block.InnerHTML)
		for j, part := range block.InnerContent {
			if part == nil {
				continue
			}
			rewritten := replacer.Replace(*part)
			block.InnerContent[j] = &rewritten
		}
		rewriteBlocks(block.InnerBlocks, replacer)
	}
}
