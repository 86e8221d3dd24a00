package game

const (
	CellNonWalkable CellType = iota
	CellWalkable
	CellLowPriority
)

type CellType uint8

// Cell is one column of the scene heightfield. GroundY is the walkable
// surface height. A cell may additionally carry one vertical obstacle span
// (crates, beams, collapsed geometry) above the ground.
type Cell struct {
	Type    CellType
	GroundY float64

	// Obstacle span; equal values mean no obstacle.
	ObstacleLowY  float64
	ObstacleHighY float64
}

func (c Cell) HasObstacle() bool {
	return c.ObstacleHighY > c.ObstacleLowY
}

// Grid is the collision heightfield of one scene. Cells are one world unit
// square, indexed [z][x], with OffsetX/OffsetZ mapping grid space to world
// space.
type Grid struct {
	OffsetX int
	OffsetZ int
	Width   int
	Depth   int
	Cells   [][]Cell
}

// NewGrid builds a scene grid from raw cells. Anchor positions are drilled
// walkable first: a named anchor must always land on usable ground, even when
// the imported collision data marks its cell blocked. A clearance pass then
// demotes walkable cells next to blocked ones, so placement prefers staying
// away from walls and obstacles.
func NewGrid(rawCells [][]Cell, offsetX, offsetZ int, anchors []Position) *Grid {
	grid := &Grid{
		OffsetX: offsetX,
		OffsetZ: offsetZ,
		Width:   len(rawCells[0]),
		Depth:   len(rawCells),
		Cells:   rawCells,
	}

	drillAnchors(rawCells, offsetX, offsetZ, anchors)

	clearanceRadius := 2
	for z := 0; z < len(rawCells); z++ {
		for x := 0; x < len(rawCells[z]); x++ {
			if rawCells[z][x].Type != CellNonWalkable {
				continue
			}
			for i := -clearanceRadius; i <= clearanceRadius; i++ {
				for j := -clearanceRadius; j <= clearanceRadius; j++ {
					if i == 0 && j == 0 {
						continue
					}
					if z+i < 0 || z+i >= len(rawCells) || x+j < 0 || x+j >= len(rawCells[z]) {
						continue
					}
					if rawCells[z+i][x+j].Type == CellWalkable {
						rawCells[z+i][x+j].Type = CellLowPriority
					}
				}
			}
		}
	}

	return grid
}

// NewGridFromProcessed returns a grid without applying anchor drilling or the
// clearance pass. Use it when the supplied cells are already processed.
func NewGridFromProcessed(processedCells [][]Cell, offsetX, offsetZ int) *Grid {
	return &Grid{
		OffsetX: offsetX,
		OffsetZ: offsetZ,
		Width:   len(processedCells[0]),
		Depth:   len(processedCells),
		Cells:   processedCells,
	}
}

func isWalkableType(ct CellType) bool {
	return ct == CellWalkable || ct == CellLowPriority
}

// cellIndex maps a world position to grid indices.
func (g *Grid) cellIndex(p Position) (int, int) {
	return floorInt(p.X) - g.OffsetX, floorInt(p.Z) - g.OffsetZ
}

func (g *Grid) CellAt(p Position) (Cell, bool) {
	x, z := g.cellIndex(p)
	if x < 0 || x >= g.Width || z < 0 || z >= g.Depth {
		return Cell{}, false
	}
	return g.Cells[z][x], true
}

func (g *Grid) IsWalkable(p Position) bool {
	cell, ok := g.CellAt(p)
	if !ok {
		return false
	}
	return isWalkableType(cell.Type)
}

// GroundAt returns the walkable surface height at p.
func (g *Grid) GroundAt(p Position) (float64, bool) {
	cell, ok := g.CellAt(p)
	if !ok || !isWalkableType(cell.Type) {
		return 0, false
	}
	return cell.GroundY, true
}

// CellCenter returns the world-space center of the cell containing p, at
// ground height.
func (g *Grid) CellCenter(p Position) (Position, bool) {
	x, z := g.cellIndex(p)
	if x < 0 || x >= g.Width || z < 0 || z >= g.Depth {
		return Position{}, false
	}
	cell := g.Cells[z][x]
	return Position{
		X: float64(x+g.OffsetX) + 0.5,
		Y: cell.GroundY,
		Z: float64(z+g.OffsetZ) + 0.5,
	}, true
}

func (g *Grid) Copy() *Grid {
	cells := make([][]Cell, g.Depth)
	for z := 0; z < g.Depth; z++ {
		cells[z] = make([]Cell, g.Width)
		copy(cells[z], g.Cells[z])
	}

	return &Grid{
		OffsetX: g.OffsetX,
		OffsetZ: g.OffsetZ,
		Width:   g.Width,
		Depth:   g.Depth,
		Cells:   cells,
	}
}

func setWalkable(cells [][]Cell, x, z int) {
	if z < 0 || z >= len(cells) {
		return
	}
	if x < 0 || x >= len(cells[z]) {
		return
	}
	cells[z][x].Type = CellWalkable
}

func hasWalkableNeighbor(cells [][]Cell, x, z int) bool {
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			nx := x + dx
			nz := z + dz
			if nz < 0 || nz >= len(cells) {
				continue
			}
			if nx < 0 || nx >= len(cells[nz]) {
				continue
			}
			if isWalkableType(cells[nz][nx].Type) {
				return true
			}
		}
	}
	return false
}

func drillAnchor(cells [][]Cell, x, z int) {
	setWalkable(cells, x, z)

	if hasWalkableNeighbor(cells, x, z) {
		return
	}

	// Isolated anchor cell, open its four direct neighbors too so placement
	// has somewhere to nudge.
	for _, delta := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		setWalkable(cells, x+delta[0], z+delta[1])
	}
}

func drillAnchors(cells [][]Cell, offsetX, offsetZ int, anchors []Position) {
	for _, anchor := range anchors {
		relativeX := floorInt(anchor.X) - offsetX
		relativeZ := floorInt(anchor.Z) - offsetZ
		if relativeZ < 0 || relativeZ >= len(cells) {
			continue
		}
		if relativeX < 0 || relativeX >= len(cells[relativeZ]) {
			continue
		}
		drillAnchor(cells, relativeX, relativeZ)
	}
}

func floorInt(v float64) int {
	i := int(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return i
}
