package frame

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/cogflow/pkg/domain"
)

// Write stores value at path. List containers are sized from Counts, so the
// count of every list on the path must be known before its elements are written.
// A path ending on a whole list (no index) stores an empty list.
func (f *Frame) Write(path domain.Path, value any) error {
	if len(path) == 0 {
		return fmt.Errorf("write: empty path")
	}
	cur := f.Data
	for i, step := range path {
		fld, err := f.field(path[:i+1])
		if err != nil {
			return err
		}
		last := i == len(path)-1

		if !fld.IsList() {
			if last {
				cur.Set(step.Name, domain.FromValue(value))
				return nil
			}
			cur = childRecord(cur, step.Name)
			continue
		}

		if step.Index == domain.NoIndex {
			if !last {
				return fmt.Errorf("write %s: list %s needs an index", path.Label(), step.Name)
			}
			if value != nil {
				return fmt.Errorf("write %s: whole-list writes only store the empty list", path.Label())
			}
			cur.Set(step.Name, &domain.List{})
			return nil
		}

		countLabel := path[:i+1].WithIndex(domain.NoIndex).Label()
		count, ok := f.Counts[countLabel]
		if !ok {
			return fmt.Errorf("write %s: count of %s is unknown", path.Label(), countLabel)
		}
		if step.Index >= count {
			return fmt.Errorf("write %s: index %d beyond count %d", path.Label(), step.Index, count)
		}
		list := childList(cur, step.Name, count)
		if last {
			list.Items[step.Index] = domain.FromValue(value)
			return nil
		}
		rec, ok := list.Items[step.Index].(*domain.Record)
		if !ok || rec == nil {
			rec = domain.NewRecord()
			list.Items[step.Index] = rec
		}
		cur = rec
	}
	return nil
}

func childRecord(parent *domain.Record, name string) *domain.Record {
	if n, ok := parent.Get(name); ok {
		if rec, ok := n.(*domain.Record); ok && rec != nil {
			return rec
		}
	}
	rec := domain.NewRecord()
	parent.Set(name, rec)
	return rec
}

func childList(parent *domain.Record, name string, count int) *domain.List {
	if n, ok := parent.Get(name); ok {
		if list, ok := n.(*domain.List); ok && list != nil {
			for len(list.Items) < count {
				list.Items = append(list.Items, nil)
			}
			return list
		}
	}
	list := &domain.List{Items: make([]domain.Node, count)}
	parent.Set(name, list)
	return list
}

// Read returns the node stored at path.
func (f *Frame) Read(path domain.Path) (domain.Node, error) {
	return readNode(f.Data, path)
}

// ReadValue returns the plain value stored at path.
func (f *Frame) ReadValue(path domain.Path) (any, error) {
	n, err := f.Read(path)
	if err != nil {
		return nil, err
	}
	return domain.ToValue(n), nil
}

func readNode(root domain.Node, path domain.Path) (domain.Node, error) {
	cur := root
	for i, step := range path {
		rec, ok := cur.(*domain.Record)
		if !ok || rec == nil {
			return nil, fmt.Errorf("read %s: %s is not a record", path.Label(), path[:i].Label())
		}
		next, ok := rec.Get(step.Name)
		if !ok {
			return nil, fmt.Errorf("read %s: %s is not set", path.Label(), path[:i+1].AbstractLabel())
		}
		cur = next
		if step.Index != domain.NoIndex {
			list, ok := cur.(*domain.List)
			if !ok || list == nil {
				return nil, fmt.Errorf("read %s: %s is not a list", path.Label(), step.Name)
			}
			if step.Index >= len(list.Items) {
				return nil, fmt.Errorf("read %s: index %d out of %d", path.Label(), step.Index, len(list.Items))
			}
			cur = list.Items[step.Index]
		}
	}
	return cur, nil
}

// Ravel reads path and flattens every list whose step carries no index, so
// "items.name" yields the name of every item.
func (f *Frame) Ravel(path domain.Path) ([]domain.Node, error) {
	return ravel(f.Data, path)
}

func ravel(node domain.Node, path domain.Path) ([]domain.Node, error) {
	if len(path) == 0 {
		if list, ok := node.(*domain.List); ok && list != nil {
			return list.Items, nil
		}
		return []domain.Node{node}, nil
	}
	rec, ok := node.(*domain.Record)
	if !ok || rec == nil {
		return nil, fmt.Errorf("ravel: %s is not inside a record", path.Label())
	}
	step := path[0]
	next, ok := rec.Get(step.Name)
	if !ok {
		return nil, fmt.Errorf("ravel: %s is not set", step.Name)
	}
	list, isList := next.(*domain.List)
	switch {
	case step.Index != domain.NoIndex:
		if !isList || step.Index >= len(list.Items) {
			return nil, fmt.Errorf("ravel: %s[%d] does not exist", step.Name, step.Index)
		}
		return ravel(list.Items[step.Index], path[1:])
	case isList && len(path) > 1:
		var out []domain.Node
		for _, item := range list.Items {
			sub, err := ravel(item, path[1:])
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	default:
		return ravel(next, path[1:])
	}
}

// Snapshot returns the collected data as plain values.
func (f *Frame) Snapshot() map[string]any {
	v, _ := domain.ToValue(f.Data).(map[string]any)
	return v
}

// Text renders a known leaf value the way it appears in a prompt line.
func Text(n domain.Node) string {
	switch v := n.(type) {
	case nil:
		return ""
	case *domain.Scalar:
		if s, ok := v.Value.(string); ok {
			return s
		}
		return fmt.Sprint(v.Value)
	default:
		b, err := json.Marshal(domain.ToValue(n))
		if err != nil {
			return fmt.Sprint(domain.ToValue(n))
		}
		return string(b)
	}
}
