// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"errors"
	"fmt"
)

// Cluster holds one Vault per plane of a workspace. Planes share only
// the workspace id.
type Cluster struct {
	workspaceID string
	planes      map[Plane]*Vault
}

// CreateCluster creates every plane in Planes with the same quota. On
// failure the planes already created are closed and removed.
func CreateCluster(dir, workspaceID string, quota uint64) (*Cluster, error) {
	cluster := &Cluster{workspaceID: workspaceID, planes: make(map[Plane]*Vault, len(Planes))}
	for _, plane := range Planes {
		v, err := Create(dir, workspaceID, plane, quota)
		if err != nil {
			cluster.Close()
			for created := range cluster.planes {
				Remove(dir, workspaceID, created)
			}
			return nil, fmt.Errorf("creating %s plane: %w", plane, err)
		}
		cluster.planes[plane] = v
	}
	return cluster, nil
}

// AttachCluster attaches every plane of an existing workspace.
func AttachCluster(dir, workspaceID string) (*Cluster, error) {
	cluster := &Cluster{workspaceID: workspaceID, planes: make(map[Plane]*Vault, len(Planes))}
	for _, plane := range Planes {
		v, err := Attach(dir, workspaceID, plane)
		if err != nil {
			cluster.Close()
			return nil, fmt.Errorf("attaching %s plane: %w", plane, err)
		}
		cluster.planes[plane] = v
	}
	return cluster, nil
}

// WorkspaceID is the workspace every plane of the cluster belongs to.
func (c *Cluster) WorkspaceID() string { return c.workspaceID }

// Plane returns the vault for p, or nil if the cluster does not hold it.
func (c *Cluster) Plane(p Plane) *Vault { return c.planes[p] }

// Core and Brain are shorthands for the two planes the runtime gates on.
func (c *Cluster) Core() *Vault  { return c.planes[PlaneCore] }
func (c *Cluster) Brain() *Vault { return c.planes[PlaneBrain] }

// Each calls fn for every plane in Planes order.
func (c *Cluster) Each(fn func(Plane, *Vault)) {
	for _, plane := range Planes {
		if v, ok := c.planes[plane]; ok {
			fn(plane, v)
		}
	}
}

// Close closes every plane and joins the errors.
func (c *Cluster) Close() error {
	var errs []error
	for _, v := range c.planes {
		if err := v.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
