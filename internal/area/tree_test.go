package area

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTree_JSON(t *testing.T) {
	root := Area{Name: "root", Description: "top", AreaViewType: ViewImage}
	root.ID, root.EntityVersion, root.EntityCreateDate, root.EntityModifyDate = 1, 2, 1000, 2000
	child := Area{Name: "child", ParentAreaID: ptr(1), AreaViewType: ViewMap,
		AreaConfiguration: "cfg", MapInfo: &MapInfo{Icon: "i", X: 1, Y: 2, Z: 3}}
	child.ID, child.EntityVersion, child.EntityCreateDate, child.EntityModifyDate = 2, 1, 1500, 1500

	tree, err := BuildTree([]Area{child, root}, 1)
	require.NoError(t, err)

	b, err := json.Marshal(tree)
	require.NoError(t, err)
	want := `{"id":1,"entityVersion":2,"entityCreateDate":1000,"entityModifyDate":2000,` +
		`"name":"root","description":"top","areaConfiguration":null,"areaViewType":"IMAGE","mapInfo":null,` +
		`"innerArea":[{"id":2,"entityVersion":1,"entityCreateDate":1500,"entityModifyDate":1500,` +
		`"name":"child","description":null,"areaConfiguration":"cfg","areaViewType":"MAP",` +
		`"mapInfo":{"icon":"i","x":1,"y":2,"z":3},"innerArea":[]}]}`
	assert.JSONEq(t, want, string(b))
	assert.Equal(t, want, string(b), "field order is fixed")
}

func TestBuildTree_ChildrenOrderedByID(t *testing.T) {
	mk := func(id int64, parent *int64) Area {
		a := Area{Name: "a", ParentAreaID: parent}
		a.ID = id
		return a
	}
	// 5 was re-parented under 2 after 3 was created under 2.
	areas := []Area{mk(1, nil), mk(2, ptr(1)), mk(5, ptr(2)), mk(3, ptr(2)), mk(4, ptr(1))}

	tree, err := BuildTree(areas, 1)
	require.NoError(t, err)
	require.Len(t, tree.InnerArea, 2)
	assert.Equal(t, int64(2), tree.InnerArea[0].ID)
	assert.Equal(t, int64(4), tree.InnerArea[1].ID)
	require.Len(t, tree.InnerArea[0].InnerArea, 2)
	assert.Equal(t, int64(3), tree.InnerArea[0].InnerArea[0].ID)
	assert.Equal(t, int64(5), tree.InnerArea[0].InnerArea[1].ID)

	_, err = BuildTree(areas, 42)
	assert.Error(t, err)
}

func TestViewType(t *testing.T) {
	tests := []struct {
		view ViewType
		ext  string
		want bool
	}{
		{ViewImage, "PNG", true},
		{ViewImage, "ifc", false},
		{ViewMap, "webp", true},
		{ViewBIMXKT, "xkt", true},
		{ViewBIMXKT, "png", false},
		{ViewBIMIFC, "ifc", true},
		{"", "jpg", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.view.Supports(tt.ext), "%s supports %s", tt.view, tt.ext)
	}

	_, err := ParseViewType("image")
	assert.ErrorIs(t, err, ErrInvalidViewType)
	v, err := ParseViewType("BIM_XKT")
	require.NoError(t, err)
	assert.Equal(t, ViewBIMXKT, v)
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "png", fileExtension("plan.v2.PNG"))
	assert.Equal(t, "", fileExtension(".png"))
	assert.Equal(t, "", fileExtension("plan."))
	assert.Equal(t, "", fileExtension("plan"))
	assert.Equal(t, "7_img.jpg", ImageKey(7, "JPG"))
}

func TestArea_JSONWritesUnsetTextAsNull(t *testing.T) {
	a := Area{Name: "hall", ProjectID: 7, AreaViewType: ViewImage}
	a.ID, a.EntityVersion = 3, 2

	b, err := json.Marshal(a)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	for _, field := range []string{"description", "imagePath", "areaConfiguration", "parentAreaId", "mapInfo"} {
		require.Contains(t, got, field)
		assert.Nil(t, got[field], field)
	}
	assert.Equal(t, "hall", got["name"])
	assert.Equal(t, float64(3), got["id"])
	assert.Equal(t, float64(7), got["projectId"])

	a.ImagePath = "3_img.png"
	a.Description = "by the stairs"
	b, err = json.Marshal(&a)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"imagePath":"3_img.png"`)
	assert.Contains(t, string(b), `"description":"by the stairs"`)

	var back Area
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, a, back)
}
