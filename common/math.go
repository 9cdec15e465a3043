package common

import (
	"github.com/chewxy/math32"
)

// Mat4 is a 4x4 matrix stored in column-major order (OpenGL/WebGPU convention).
type Mat4 = [16]float32

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// IdentityMat4 returns a new identity matrix.
func IdentityMat4() Mat4 {
	var m Mat4
	Identity(m[:])
	return m
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order (OpenGL/WebGPU convention).
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// MulMat4 returns the product a * b of two column-major matrices.
func MulMat4(a, b Mat4) Mat4 {
	var out Mat4
	Mul4(out[:], a[:], b[:])
	return out
}

// Perspective creates a perspective projection matrix.
// Uses the WebGPU clip space depth range [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	f := 1.0 / math32.Tan(fovY/2.0)
	Identity(out)

	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	out[15] = 0.0
}

// Orthographic creates an orthographic projection matrix with the WebGPU depth range [0, 1].
// The visible volume spans [-halfWidth, halfWidth] x [-halfHeight, halfHeight] around the view axis.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - halfWidth, halfHeight: half extents of the view volume
//   - near, far: clipping plane distances
func Orthographic(out []float32, halfWidth, halfHeight, near, far float32) {
	Identity(out)
	if halfWidth == 0 || halfHeight == 0 || near == far {
		return
	}
	out[0] = 1 / halfWidth
	out[5] = 1 / halfHeight
	out[10] = 1 / (near - far)
	out[14] = near / (near - far)
}

// Translation returns a translation matrix.
func Translation(x, y, z float32) Mat4 {
	m := IdentityMat4()
	m[12], m[13], m[14] = x, y, z
	return m
}

// Scaling returns a non-uniform scale matrix.
func Scaling(x, y, z float32) Mat4 {
	m := IdentityMat4()
	m[0], m[5], m[10] = x, y, z
	return m
}

// QuatToMat4 converts a unit quaternion (x, y, z, w) to a rotation matrix.
// A zero quaternion is treated as the identity rotation.
//
// Parameters:
//   - q: quaternion in (x, y, z, w) order, as stored by glTF
//
// Returns:
//   - Mat4: the rotation matrix
func QuatToMat4(q [4]float32) Mat4 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	n := x*x + y*y + z*z + w*w
	if n == 0 {
		return IdentityMat4()
	}
	s := 2 / n

	xx, yy, zz := x*x*s, y*y*s, z*z*s
	xy, xz, yz := x*y*s, x*z*s, y*z*s
	wx, wy, wz := w*x*s, w*y*s, w*z*s

	return Mat4{
		1 - (yy + zz), xy + wz, xz - wy, 0,
		xy - wz, 1 - (xx + zz), yz + wx, 0,
		xz + wy, yz - wx, 1 - (xx + yy), 0,
		0, 0, 0, 1,
	}
}

// QuatFromEuler builds a quaternion from Euler angles in radians applied in Y * X * Z order,
// matching BuildModelMatrix.
func QuatFromEuler(rotX, rotY, rotZ float32) [4]float32 {
	sx, cx := math32.Sincos(rotX / 2)
	sy, cy := math32.Sincos(rotY / 2)
	sz, cz := math32.Sincos(rotZ / 2)

	// q = qy * qx * qz
	return [4]float32{
		cy*sx*cz + sy*cx*sz,
		sy*cx*cz - cy*sx*sz,
		cy*cx*sz - sy*sx*cz,
		cy*cx*cz + sy*sx*sz,
	}
}

// ComposeTRS builds the matrix T * R * S from a translation, a rotation quaternion and a scale.
//
// Parameters:
//   - t: translation
//   - r: rotation quaternion (x, y, z, w)
//   - s: per-axis scale
//
// Returns:
//   - Mat4: the composed column-major matrix
func ComposeTRS(t [3]float32, r [4]float32, s [3]float32) Mat4 {
	m := QuatToMat4(r)
	for i := 0; i < 3; i++ {
		m[i] *= s[0]
		m[4+i] *= s[1]
		m[8+i] *= s[2]
	}
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// TransformPoint multiplies a point (w = 1) by a column-major matrix.
func TransformPoint(m Mat4, p [3]float32) [3]float32 {
	return [3]float32{
		m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12],
		m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13],
		m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14],
	}
}

// TransformVec4 multiplies a homogeneous vector by a column-major matrix.
func TransformVec4(m Mat4, v [4]float32) [4]float32 {
	return [4]float32{
		m[0]*v[0] + m[4]*v[1] + m[8]*v[2] + m[12]*v[3],
		m[1]*v[0] + m[5]*v[1] + m[9]*v[2] + m[13]*v[3],
		m[2]*v[0] + m[6]*v[1] + m[10]*v[2] + m[14]*v[3],
		m[3]*v[0] + m[7]*v[1] + m[11]*v[2] + m[15]*v[3],
	}
}

// BuildModelMatrix constructs a 4x4 model matrix from position, Euler rotation, and scale.
// The rotation order is Y * X * Z (yaw-pitch-roll). All matrices are column-major.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - posX, posY, posZ: translation in world space
//   - rotX, rotY, rotZ: rotation angles in radians around each axis
//   - scaleX, scaleY, scaleZ: scale factors along each axis
func BuildModelMatrix(out []float32, posX, posY, posZ, rotX, rotY, rotZ, scaleX, scaleY, scaleZ float32) {
	sx, cx := math32.Sincos(rotX)
	sy, cy := math32.Sincos(rotY)
	sz, cz := math32.Sincos(rotZ)

	// R = Ry * Rx * Rz, column-major
	out[0] = (cy*cz + sy*sx*sz) * scaleX
	out[1] = (cx * sz) * scaleX
	out[2] = (-sy*cz + cy*sx*sz) * scaleX
	out[3] = 0

	out[4] = (cy*-sz + sy*sx*cz) * scaleY
	out[5] = (cx * cz) * scaleY
	out[6] = (sy*sz + cy*sx*cz) * scaleY
	out[7] = 0

	out[8] = (sy * cx) * scaleZ
	out[9] = (-sx) * scaleZ
	out[10] = (cy * cx) * scaleZ
	out[11] = 0

	out[12] = posX
	out[13] = posY
	out[14] = posZ
	out[15] = 1
}

// Invert4 computes the inverse of a 4x4 column-major matrix using the Laplace
// expansion (cofactor) method. If the matrix is singular (determinant ≈ 0) the
// output is left unchanged and the function returns false.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - bool: true if the matrix was successfully inverted, false if singular
func Invert4(out, m []float32) bool {
	// 2x2 sub-determinants of the upper-left and lower-right quadrants.
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return false
	}

	invDet := 1.0 / det

	out[0] = (m[5]*c5 - m[6]*c4 + m[7]*c3) * invDet
	out[1] = (-m[1]*c5 + m[2]*c4 - m[3]*c3) * invDet
	out[2] = (m[13]*s5 - m[14]*s4 + m[15]*s3) * invDet
	out[3] = (-m[9]*s5 + m[10]*s4 - m[11]*s3) * invDet

	out[4] = (-m[4]*c5 + m[6]*c2 - m[7]*c1) * invDet
	out[5] = (m[0]*c5 - m[2]*c2 + m[3]*c1) * invDet
	out[6] = (-m[12]*s5 + m[14]*s2 - m[15]*s1) * invDet
	out[7] = (m[8]*s5 - m[10]*s2 + m[11]*s1) * invDet

	out[8] = (m[4]*c4 - m[5]*c2 + m[7]*c0) * invDet
	out[9] = (-m[0]*c4 + m[1]*c2 - m[3]*c0) * invDet
	out[10] = (m[12]*s4 - m[13]*s2 + m[15]*s0) * invDet
	out[11] = (-m[8]*s4 + m[9]*s2 - m[11]*s0) * invDet

	out[12] = (-m[4]*c3 + m[5]*c1 - m[6]*c0) * invDet
	out[13] = (m[0]*c3 - m[1]*c1 + m[2]*c0) * invDet
	out[14] = (-m[12]*s3 + m[13]*s1 - m[14]*s0) * invDet
	out[15] = (m[8]*s3 - m[9]*s1 + m[10]*s0) * invDet

	return true
}

// LookAt creates a view matrix that positions and orients the camera.
// The resulting matrix transforms world coordinates to view/camera space.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eyeX, eyeY, eyeZ: camera position in world space
//   - centerX, centerY, centerZ: target point the camera looks at
//   - upX, upY, upZ: up vector defining camera orientation (typically 0,1,0)
func LookAt(out []float32, eyeX, eyeY, eyeZ, centerX, centerY, centerZ, upX, upY, upZ float32) {
	z0 := eyeX - centerX
	z1 := eyeY - centerY
	z2 := eyeZ - centerZ
	val := z0*z0 + z1*z1 + z2*z2
	if val == 0 {
		val = 1
	}
	invLen := 1.0 / math32.Sqrt(val)
	z0 *= invLen
	z1 *= invLen
	z2 *= invLen

	x0 := upY*z2 - upZ*z1
	x1 := upZ*z0 - upX*z2
	x2 := upX*z1 - upY*z0
	val = x0*x0 + x1*x1 + x2*x2
	if val == 0 {
		val = 1
	}
	invLen = 1.0 / math32.Sqrt(val)
	x0 *= invLen
	x1 *= invLen
	x2 *= invLen

	y0 := z1*x2 - z2*x1
	y1 := z2*x0 - z0*x2
	y2 := z0*x1 - z1*x0

	out[0], out[4], out[8], out[12] = x0, x1, x2, -(x0*eyeX + x1*eyeY + x2*eyeZ)
	out[1], out[5], out[9], out[13] = y0, y1, y2, -(y0*eyeX + y1*eyeY + y2*eyeZ)
	out[2], out[6], out[10], out[14] = z0, z1, z2, -(z0*eyeX + z1*eyeY + z2*eyeZ)
	out[3], out[7], out[11], out[15] = 0, 0, 0, 1
}

// Radians converts degrees to radians.
func Radians(deg float32) float32 {
	return deg * math32.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float32) float32 {
	return rad * 180 / math32.Pi
}

// Normalize3 returns v scaled to unit length, or v unchanged when its length is zero.
func Normalize3(v [3]float32) [3]float32 {
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

// Sub3 returns a - b.
func Sub3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Cross3 returns the cross product a x b.
func Cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Dot3 returns the dot product of a and b.
func Dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// DecomposeTRS splits an affine column-major matrix into translation, rotation quaternion and scale.
// Shear is discarded. A negative determinant is folded into the X scale.
//
// Parameters:
//   - m: the matrix to decompose
//
// Returns:
//   - [3]float32: translation
//   - [4]float32: rotation quaternion (x, y, z, w)
//   - [3]float32: scale
func DecomposeTRS(m Mat4) (t [3]float32, r [4]float32, s [3]float32) {
	t = [3]float32{m[12], m[13], m[14]}
	cols := [3][3]float32{
		{m[0], m[1], m[2]},
		{m[4], m[5], m[6]},
		{m[8], m[9], m[10]},
	}
	for i := range cols {
		s[i] = math32.Sqrt(Dot3(cols[i], cols[i]))
	}
	if Dot3(Cross3(cols[0], cols[1]), cols[2]) < 0 {
		s[0] = -s[0]
	}
	for i := range cols {
		if s[i] != 0 {
			cols[i] = [3]float32{cols[i][0] / s[i], cols[i][1] / s[i], cols[i][2] / s[i]}
		}
	}

	// rotation matrix element R[row][col] = cols[col][row]
	m00, m11, m22 := cols[0][0], cols[1][1], cols[2][2]
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		k := 0.5 / math32.Sqrt(trace+1)
		r = [4]float32{(cols[1][2] - cols[2][1]) * k, (cols[2][0] - cols[0][2]) * k, (cols[0][1] - cols[1][0]) * k, 0.25 / k}
	case m00 > m11 && m00 > m22:
		k := 2 * math32.Sqrt(1+m00-m11-m22)
		r = [4]float32{0.25 * k, (cols[1][0] + cols[0][1]) / k, (cols[2][0] + cols[0][2]) / k, (cols[1][2] - cols[2][1]) / k}
	case m11 > m22:
		k := 2 * math32.Sqrt(1+m11-m00-m22)
		r = [4]float32{(cols[1][0] + cols[0][1]) / k, 0.25 * k, (cols[2][1] + cols[1][2]) / k, (cols[2][0] - cols[0][2]) / k}
	default:
		k := 2 * math32.Sqrt(1+m22-m00-m11)
		r = [4]float32{(cols[2][0] + cols[0][2]) / k, (cols[2][1] + cols[1][2]) / k, 0.25 * k, (cols[0][1] - cols[1][0]) / k}
	}
	return t, r, s
}
