package services

import (
	"sort"

	"settleup/internal/models"
)

// buildCommentTree arranges a settlement's comments into threads. Roots are
// ordered pinned first, then newest first; replies oldest first. Deleted
// comments are kept as tombstones only while they still have visible
// replies. A comment whose parent is missing is treated as a root.
func buildCommentTree(comments []models.Comment) []*CommentNode {
	byID := make(map[string]bool, len(comments))
	for _, c := range comments {
		byID[c.ID] = true
	}

	children := make(map[string][]models.Comment)
	var roots []models.Comment
	for _, c := range comments {
		if c.ParentCommentID != nil && byID[*c.ParentCommentID] {
			children[*c.ParentCommentID] = append(children[*c.ParentCommentID], c)
			continue
		}
		roots = append(roots, c)
	}

	var build func(c models.Comment) *CommentNode
	build = func(c models.Comment) *CommentNode {
		replies := children[c.ID]
		sort.SliceStable(replies, func(i, j int) bool {
			return replies[i].CreatedAt.Before(replies[j].CreatedAt)
		})

		node := &CommentNode{Comment: c, Replies: []*CommentNode{}}
		for _, r := range replies {
			if child := build(r); child != nil {
				node.Replies = append(node.Replies, child)
			}
		}

		if c.IsDeleted {
			if len(node.Replies) == 0 {
				return nil
			}
			node.Content = ""
			node.ImageURLs = []string{}
		}
		return node
	}

	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].IsPinned != roots[j].IsPinned {
			return roots[i].IsPinned
		}
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})

	tree := make([]*CommentNode, 0, len(roots))
	for _, r := range roots {
		if node := build(r); node != nil {
			tree = append(tree, node)
		}
	}
	return tree
}
