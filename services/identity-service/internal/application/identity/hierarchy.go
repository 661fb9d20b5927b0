package identity

import "context"

// ChildrenLister resolves direct children of a tenant.
type ChildrenLister interface {
	ChildrenIDs(ctx context.Context, id string) ([]string, error)
}

// subtreeIDs walks the tree breadth-first from root and returns root plus
// every descendant. A visited set makes the walk terminate even if the stored
// tree has been corrupted into a cycle.
func subtreeIDs(ctx context.Context, store ChildrenLister, root string) ([]string, error) {
	visited := map[string]bool{root: true}
	order := []string{root}

	queue := []string{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := store.ChildrenIDs(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if visited[child] {
				continue
			}
			visited[child] = true
			order = append(order, child)
			queue = append(queue, child)
		}
	}
	return order, nil
}
